package sqlstore

// sqliteSchema is executed once on startup. Timestamps are stored as
// fixed-width UTC TEXT so that lexical order matches chronological order,
// and amounts as decimal TEXT so no precision is lost.
//
// order_events carries no foreign key: audit rows outlive the order they
// describe.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS orders (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id              TEXT    NOT NULL UNIQUE,
    customer_id           TEXT    NOT NULL,
    customer_name         TEXT    NOT NULL DEFAULT '',
    customer_email        TEXT    NOT NULL DEFAULT '',
    shipping_address      TEXT    NOT NULL DEFAULT '',
    shipping_city         TEXT    NOT NULL DEFAULT '',
    shipping_postal_code  TEXT    NOT NULL DEFAULT '',
    shipping_country      TEXT    NOT NULL DEFAULT '',
    currency              TEXT    NOT NULL DEFAULT 'EUR',
    total_amount          TEXT    NOT NULL DEFAULT '0',
    status                TEXT    NOT NULL,
    created_at            TEXT    NOT NULL,
    updated_at            TEXT    NOT NULL,
    shipped_at            TEXT,
    delivered_at          TEXT
);

CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    order_pk             INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id           TEXT    NOT NULL,
    product_name         TEXT    NOT NULL,
    product_sku          TEXT    NOT NULL DEFAULT '',
    product_description  TEXT    NOT NULL DEFAULT '',
    unit_price           TEXT    NOT NULL,
    quantity             INTEGER NOT NULL CHECK (quantity > 0),
    line_total           TEXT    NOT NULL,
    created_at           TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_pk ON order_items(order_pk);

CREATE TABLE IF NOT EXISTS order_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT    NOT NULL,
    event_type  TEXT    NOT NULL,
    event_data  TEXT    NOT NULL DEFAULT '{}',
    created_by  TEXT    NOT NULL DEFAULT 'system',
    -- W3C ids of the span active when the row was written.
    trace_id    TEXT    NOT NULL DEFAULT '',
    span_id     TEXT    NOT NULL DEFAULT '',
    created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events(order_id, created_at);
CREATE INDEX IF NOT EXISTS idx_order_events_trace_id ON order_events(trace_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS orders (
    id                    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    order_id              TEXT        NOT NULL UNIQUE,
    customer_id           TEXT        NOT NULL,
    customer_name         TEXT        NOT NULL DEFAULT '',
    customer_email        TEXT        NOT NULL DEFAULT '',
    shipping_address      TEXT        NOT NULL DEFAULT '',
    shipping_city         TEXT        NOT NULL DEFAULT '',
    shipping_postal_code  TEXT        NOT NULL DEFAULT '',
    shipping_country      TEXT        NOT NULL DEFAULT '',
    currency              VARCHAR(3)  NOT NULL DEFAULT 'EUR',
    total_amount          NUMERIC     NOT NULL DEFAULT 0,
    status                TEXT        NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL,
    shipped_at            TIMESTAMPTZ,
    delivered_at          TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id                   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    order_pk             BIGINT      NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id           TEXT        NOT NULL,
    product_name         TEXT        NOT NULL,
    product_sku          TEXT        NOT NULL DEFAULT '',
    product_description  TEXT        NOT NULL DEFAULT '',
    unit_price           NUMERIC     NOT NULL,
    quantity             INTEGER     NOT NULL CHECK (quantity > 0),
    line_total           NUMERIC     NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_pk ON order_items(order_pk);

CREATE TABLE IF NOT EXISTS order_events (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    order_id    TEXT        NOT NULL,
    event_type  TEXT        NOT NULL,
    event_data  TEXT        NOT NULL DEFAULT '{}',
    created_by  TEXT        NOT NULL DEFAULT 'system',
    trace_id    TEXT        NOT NULL DEFAULT '',
    span_id     TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events(order_id, created_at);
CREATE INDEX IF NOT EXISTS idx_order_events_trace_id ON order_events(trace_id);
`
