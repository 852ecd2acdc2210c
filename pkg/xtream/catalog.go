package xtream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Catalog is a complete download of the three clusters of an account.
type Catalog struct {
	LiveCategories   []Category  `json:"live_categories"`
	VODCategories    []Category  `json:"vod_categories"`
	SeriesCategories []Category  `json:"series_categories"`
	Live             []Stream    `json:"live"`
	VOD              []VODStream `json:"vod"`
	Series           []Series    `json:"series"`
}

// CategoryNames returns a category id to name lookup for cluster.
func (c *Catalog) CategoryNames(cluster Cluster) map[string]string {
	var cats []Category
	switch cluster {
	case ClusterVideo:
		cats = c.VODCategories
	case ClusterSeries:
		cats = c.SeriesCategories
	default:
		cats = c.LiveCategories
	}
	names := make(map[string]string, len(cats))
	for _, cat := range cats {
		names[cat.CategoryID.String()] = cat.CategoryName
	}
	return names
}

// Len returns the number of items across all clusters.
func (c *Catalog) Len() int {
	return len(c.Live) + len(c.VOD) + len(c.Series)
}

// FetchCatalog downloads categories and items of every cluster. The six
// requests run concurrently; the first failure cancels the rest.
func (c *Client) FetchCatalog(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		cat.LiveCategories, err = c.GetCategories(ctx, ClusterLive)
		return err
	})
	g.Go(func() (err error) {
		cat.VODCategories, err = c.GetCategories(ctx, ClusterVideo)
		return err
	})
	g.Go(func() (err error) {
		cat.SeriesCategories, err = c.GetCategories(ctx, ClusterSeries)
		return err
	})
	g.Go(func() (err error) {
		cat.Live, err = c.GetLiveStreams(ctx, nil)
		return err
	})
	g.Go(func() (err error) {
		cat.VOD, err = c.GetVODStreams(ctx, nil)
		return err
	})
	g.Go(func() (err error) {
		cat.Series, err = c.GetSeries(ctx, nil)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cat, nil
}
