// Package pagination walks cursor-paginated endpoints page by page.
//
// Each page request is produced by a RequestBuilder from the cursor the
// server returned for the previous page, and each response is decoded by a
// PageParser. Every HTTP attempt passes through the shared rate limiter and
// the retrier, so a transient failure on page N is retried in place without
// refetching earlier pages.
//
// Example usage:
//
//	f, _ := pagination.NewFetcher[NFT](doer, retrier, pagination.DefaultConfig(), sink)
//	res := f.Fetch(ctx, buildGetNFTs, parseGetNFTs, 100, 0)
//	if !res.Success {
//	    // res.Items still holds every page fetched before res.Err
//	}
//
// The fetcher:
//   - Never deduplicates and never reorders items
//   - Stops at an empty cursor, at maxPages (Truncated), or at the first failure
//   - Returns partial items together with the classified failure
//
// BatchFetcher runs several independent fetches on a bounded worker pool.
// All of them share the limiter held by the retrier.
package pagination
