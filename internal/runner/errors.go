package runner

import "fmt"

const (
	excerptLimit = 1000
	excerptHead  = 500
	excerptTail  = 500
)

// QueryExecutionError attributes a failed statement to its code and block.
type QueryExecutionError struct {
	Query string // as written in the script, before comment stripping
	Code  string
	Block string
	Err   error // driver error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf(`Query "%s" in "%s" failed with error: "%s"`, Excerpt(e.Query), e.Code, e.Err.Error())
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// Excerpt shortens queries longer than 1000 characters to their first 500
// and last 500 characters joined by "\n...\n". Shorter queries are returned
// unchanged. Lengths count code points, not bytes.
func Excerpt(query string) string {
	r := []rune(query)
	if len(r) <= excerptLimit {
		return query
	}
	return string(r[:excerptHead]) + "\n...\n" + string(r[len(r)-excerptTail:])
}
