// Package httputil holds the retry policy used when fetching remote
// datasets.
//
// [Retry] runs an operation with exponential backoff. Only failures marked
// transient, by wrapping them with [Retryable], are attempted again; any
// other error ends the loop at once. Dataset fetches mark network errors
// and 5xx responses as transient while a 404 or a malformed payload is not.
//
//	err := httputil.Retry(ctx, 3, 500*time.Millisecond, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
package httputil
