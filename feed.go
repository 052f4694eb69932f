package main

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// ResolveFeedItem returns the link of the item at index (0 = first listed) in an RSS or Atom feed
func ResolveFeedItem(ctx context.Context, feedURL string, index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("%w: feed item index must not be negative", ErrExtraction)
	}

	feed, err := gofeed.NewParser().ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse feed %s: %w", ErrExtraction, feedURL, err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return "", fmt.Errorf("%w: feed %s contains no items", ErrExtraction, feedURL)
	}
	if index >= len(feed.Items) {
		return "", fmt.Errorf("%w: feed %s has %d items, no item %d", ErrExtraction, feedURL, len(feed.Items), index)
	}

	item := feed.Items[index]
	if item.Link == "" {
		return "", fmt.Errorf("%w: feed item %d has no link", ErrExtraction, index)
	}

	logInfo("feed", "Resolved feed item", map[string]any{
		"feed":  feedURL,
		"index": index,
		"title": item.Title,
		"link":  item.Link,
	})
	return item.Link, nil
}
