package migrations

import "embed"

// FS はアカウントテーブルのマイグレーション（goose 形式）を保持します。
//
//go:embed *.sql
var FS embed.FS
