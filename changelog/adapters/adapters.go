// Package adapters forwards change log snapshots to external audit trails.
package adapters

import "github.com/mwantia/docstore/changelog"

var (
	_ changelog.Adapter = (*Consul)(nil)
	_ changelog.Adapter = (*Postgres)(nil)
	_ changelog.Adapter = (*S3)(nil)
)
