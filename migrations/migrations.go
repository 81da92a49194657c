// Package migrations holds the numbered SQL migrations applied by
// "hqmf-server migrate up".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
