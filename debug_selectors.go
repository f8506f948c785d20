package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"

	"review-extractor/adapters"
	"review-extractor/internal/types"
	"review-extractor/utils"
)

// Fetches one listing page and reports which card selectors match, for
// when a source changes its markup and runs start coming back empty.
//
//	go run debug_selectors.go https://www.g2.com/products/slack/reviews?page=1
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: debug_selectors <listing-url>")
	}
	pageURL := os.Args[1]

	config := types.DefaultConfig()
	config.Timeout = 45 * time.Second
	logger := &debugLogger{}

	session, err := utils.NewSession(config, nil, logger, nil)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	resp, err := session.Get(context.Background(), pageURL)
	if err != nil {
		log.Fatalf("Failed to get page: %v", err)
	}
	fmt.Printf("Status: %d, %d bytes\n", resp.StatusCode, len(resp.Body))

	doc, err := adapters.ParseHTML(resp.Body)
	if err != nil {
		log.Fatalf("Failed to parse HTML: %v", err)
	}

	for _, profile := range adapters.Profiles() {
		fmt.Printf("\n=== %s ===\n", profile.Source.DisplayName())
		for _, selector := range profile.Cards {
			fmt.Printf("  %-55s %d\n", selector, doc.Find(selector).Length())
		}
		cards, selector := profile.FindCards(doc)
		if cards.Length() == 0 {
			continue
		}
		fmt.Printf("  using %s\n", selector)
		cards.Each(func(i int, card *goquery.Selection) {
			if i >= 3 {
				return
			}
			date, _ := profile.Date.First(card)
			author, _ := profile.Author.First(card)
			fmt.Printf("  card %d: date=%q author=%q\n", i+1, date, author)
		})
	}

	fmt.Println("\nAvailable elements:")
	for _, line := range adapters.DescribePage(doc, 40) {
		fmt.Printf("  - %s\n", line)
	}
}

type debugLogger struct{}

func (d *debugLogger) Debug(args ...interface{})                 { fmt.Println(args...) }
func (d *debugLogger) Info(args ...interface{})                  { fmt.Println(args...) }
func (d *debugLogger) Warn(args ...interface{})                  { fmt.Println(args...) }
func (d *debugLogger) Error(args ...interface{})                 { fmt.Println(args...) }
func (d *debugLogger) Debugf(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
func (d *debugLogger) Infof(format string, args ...interface{})  { fmt.Printf(format+"\n", args...) }
func (d *debugLogger) Warnf(format string, args ...interface{})  { fmt.Printf(format+"\n", args...) }
func (d *debugLogger) Errorf(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
