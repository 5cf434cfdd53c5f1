// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel plus JSON column helpers
//   - catalog.go: products, product_variants, sync_runs
//   - order.go: orders, order_items, order_tracking_events
//   - review.go: product_reviews
//   - setting.go: settings
package models

// All returns every persistence model in dependency order. The SQL files
// under migrations/ are the schema of record; this list serves AutoMigrate
// in tests and local development.
func All() []any {
	return []any{
		&ProductModel{},
		&VariantModel{},
		&SyncRunModel{},
		&OrderModel{},
		&OrderItemModel{},
		&TrackingEventModel{},
		&ReviewModel{},
		&SettingModel{},
	}
}
