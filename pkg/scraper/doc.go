// Package scraper runs the receipt download pipeline.
//
// A run signs in to the portal with a headless browser, scrapes the document
// listing into the details file, closes the browser and then downloads every
// listed receipt image over plain HTTP with the captured session cookies.
//
// Usage:
//
//	s, err := scraper.New(cfg, account)
//	if err != nil {
//	    return err
//	}
//	summary, err := s.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(summary.Downloaded(), "receipts downloaded")
//
// Sign-in and listing failures end the run with an error. Download failures
// never do; they are reported per document in the Summary.
package scraper
