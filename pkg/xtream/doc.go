// Package xtream models the Xtream Codes catalog API.
//
// It covers the three catalog clusters (live, vod and series), their
// category listings, the URL layout used by Xtream panels and a small client
// that downloads the catalog collections:
//
//	client := xtream.NewClient("http://example.com:8080", "username", "password")
//	categories, err := client.GetLiveCategories(ctx)
//	streams, err := client.GetLiveStreams(ctx, nil)
//
// Player API URLs take the form
//
//	{base}/player_api.php?username={user}&password={pass}&action={action}
//
// and stream URLs
//
//	{base}/live/{user}/{pass}/{id}.{ext}
//	{base}/movie/{user}/{pass}/{id}.{ext}
//	{base}/series/{user}/{pass}/{id}.{ext}
//
// The same types are used when writing Xtream collections, so a written
// collection can be served back through player_api.php unchanged.
package xtream
