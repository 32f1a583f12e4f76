// formatação de valores numéricos para headers (Retry-After, X-RateLimit-*).
// strconv direto, sem passar por fmt.

package loginlimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }
