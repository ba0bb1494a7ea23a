package store

// SchemaVersion is the current schema version. Bump when adding migrations.
const SchemaVersion = 4

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	purchase_price REAL NOT NULL DEFAULT 0,
	selling_price REAL NOT NULL DEFAULT 0,
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	low_stock_alert INTEGER NOT NULL DEFAULT 0,
	images TEXT NOT NULL DEFAULT '[]',
	total_sold INTEGER NOT NULL DEFAULT 0,
	total_revenue REAL NOT NULL DEFAULT 0,
	restocked_quantity INTEGER NOT NULL DEFAULT 0,
	is_local INTEGER NOT NULL DEFAULT 0,
	synced INTEGER NOT NULL DEFAULT 0,
	sync_attempts INTEGER NOT NULL DEFAULT 0,
	last_sync_error TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stock_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id TEXT NOT NULL,
	previous_stock INTEGER NOT NULL,
	new_stock INTEGER NOT NULL,
	units_changed INTEGER NOT NULL,
	type TEXT NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (product_id) REFERENCES products(id)
);

CREATE TABLE IF NOT EXISTS sales (
	id TEXT PRIMARY KEY,
	sale_number TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	customer_location TEXT NOT NULL DEFAULT '',
	subtotal REAL NOT NULL DEFAULT 0,
	total_cost REAL NOT NULL DEFAULT 0,
	total_profit REAL NOT NULL DEFAULT 0,
	total_amount REAL NOT NULL DEFAULT 0,
	amount_paid REAL NOT NULL DEFAULT 0,
	balance REAL NOT NULL DEFAULT 0,
	payment_status TEXT NOT NULL DEFAULT 'pending',
	payment_method TEXT NOT NULL DEFAULT 'cash',
	status TEXT NOT NULL DEFAULT 'completed',
	notes TEXT NOT NULL DEFAULT '',
	is_local INTEGER NOT NULL DEFAULT 0,
	synced INTEGER NOT NULL DEFAULT 0,
	sync_attempts INTEGER NOT NULL DEFAULT 0,
	last_sync_error TEXT NOT NULL DEFAULT '',
	last_sync_at DATETIME,
	created_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sale_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sale_id TEXT NOT NULL,
	product_id TEXT NOT NULL DEFAULT '',
	product_name TEXT NOT NULL,
	product_brand TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL,
	unit_price REAL NOT NULL DEFAULT 0,
	unit_cost REAL NOT NULL DEFAULT 0,
	total_price REAL NOT NULL DEFAULT 0,
	total_cost REAL NOT NULL DEFAULT 0,
	profit REAL NOT NULL DEFAULT 0,
	FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sync_queue (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	action TEXT NOT NULL,
	target_id TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_attempt DATETIME,
	last_error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_info (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE INDEX IF NOT EXISTS idx_products_synced ON products(synced);
CREATE INDEX IF NOT EXISTS idx_stock_history_product ON stock_history(product_id);
CREATE INDEX IF NOT EXISTS idx_sales_number ON sales(sale_number);
CREATE INDEX IF NOT EXISTS idx_sales_created ON sales(created_at);
CREATE INDEX IF NOT EXISTS idx_sales_synced ON sales(synced);
CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, created_at);
`

// Migration represents a schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered list of schema migrations.
// Base schema above already includes all columns; migrations exist so
// databases created by earlier builds upgrade in place.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL:         schema,
	},
	{
		Version:     2,
		Description: "Add sync attempt tracking to products and sales",
		SQL: `
			ALTER TABLE products ADD COLUMN sync_attempts INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE products ADD COLUMN last_sync_error TEXT NOT NULL DEFAULT '';
			ALTER TABLE sales ADD COLUMN sync_attempts INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE sales ADD COLUMN last_sync_error TEXT NOT NULL DEFAULT '';
		`,
	},
	{
		Version:     3,
		Description: "Add created_by for per-user view filtering",
		SQL: `
			ALTER TABLE products ADD COLUMN created_by TEXT NOT NULL DEFAULT '';
			ALTER TABLE sales ADD COLUMN created_by TEXT NOT NULL DEFAULT '';
		`,
	},
	{
		Version:     4,
		Description: "Record the time of each sale sync attempt",
		SQL: `
			ALTER TABLE sales ADD COLUMN last_sync_at DATETIME;
		`,
	},
}
