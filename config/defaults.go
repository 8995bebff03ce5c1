package config

import "github.com/mwantia/docstore"

func defaults() map[string]any {
	return map[string]any{
		"logging.level":       "INFO",
		"logging.file":        "",
		"logging.json":        false,
		"logging.no_color":    false,
		"logging.no_terminal": false,

		"storage.root":            "./data",
		"storage.max_inline_size": docstore.DefaultMaxInlineSize,
		"storage.load_workers":    8,

		"search.enabled": false,
		"search.path":    ":memory:",

		"changelog.enabled":        false,
		"changelog.dir":            "./changelog",
		"changelog.snapshot_every": 100,

		"changelog.consul.enabled":    false,
		"changelog.consul.address":    "127.0.0.1:8500",
		"changelog.consul.token":      "",
		"changelog.consul.datacenter": "",
		"changelog.consul.prefix":     "docstore/changelog",

		"changelog.postgres.enabled": false,
		"changelog.postgres.dsn":     "",

		"changelog.s3.enabled":    false,
		"changelog.s3.endpoint":   "",
		"changelog.s3.bucket":     "",
		"changelog.s3.access_key": "",
		"changelog.s3.secret_key": "",
		"changelog.s3.use_ssl":    true,
		"changelog.s3.prefix":     "changelog",
	}
}
