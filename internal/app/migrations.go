package app

import "facebrasil.com.br/gamification/internal/db/postgres"

// SQL-миграции встроены в код для упрощения деплоя.
var migrations = []postgres.Migration{
	{Version: 1, Name: "reputation_ledgers", SQL: migration001Ledgers},
	{Version: 2, Name: "activity_events", SQL: migration002Activity},
	{Version: 3, Name: "rewards", SQL: migration003Rewards},
	{Version: 4, Name: "admin", SQL: migration004Admin},
}

var migration001Ledgers = `
CREATE TABLE IF NOT EXISTS reputation_ledgers (
    user_id TEXT PRIMARY KEY,
    total_points BIGINT NOT NULL DEFAULT 0 CHECK (total_points >= 0),
    weekly_points BIGINT NOT NULL DEFAULT 0 CHECK (weekly_points >= 0),
    monthly_points BIGINT NOT NULL DEFAULT 0 CHECK (monthly_points >= 0),
    level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
    level_name VARCHAR(64) NOT NULL DEFAULT '',
    facets_balance NUMERIC(20,3) NOT NULL DEFAULT 0 CHECK (facets_balance >= 0),
    badges TEXT[] NOT NULL DEFAULT '{}',
    articles_read BIGINT NOT NULL DEFAULT 0,
    comments_made BIGINT NOT NULL DEFAULT 0,
    shares_made BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledgers_total ON reputation_ledgers(total_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_ledgers_weekly ON reputation_ledgers(weekly_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_ledgers_monthly ON reputation_ledgers(monthly_points DESC, user_id);
`

var migration002Activity = `
CREATE TABLE IF NOT EXISTS activity_events (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    target_id TEXT NOT NULL DEFAULT '',
    kind VARCHAR(32) NOT NULL,
    points_awarded BIGINT NOT NULL,
    validated BOOLEAN NOT NULL DEFAULT TRUE,
    deferred_credit BOOLEAN NOT NULL DEFAULT FALSE,
    dedupe_key TEXT,
    idempotency_key VARCHAR(128),
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_activity_dedupe
    ON activity_events(user_id, kind, dedupe_key) WHERE dedupe_key IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_activity_idempotency
    ON activity_events(user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_activity_user_created ON activity_events(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_pending ON activity_events(created_at) WHERE validated = FALSE;
`

var migration003Rewards = `
CREATE TABLE IF NOT EXISTS partner_offers (
    id UUID PRIMARY KEY,
    partner_id TEXT NOT NULL,
    title VARCHAR(255) NOT NULL,
    facet_cost NUMERIC(20,3) NOT NULL CHECK (facet_cost > 0),
    offer_type VARCHAR(64) NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_offers_active ON partner_offers(facet_cost) WHERE is_active = TRUE;
CREATE TABLE IF NOT EXISTS redemptions (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    offer_id UUID NOT NULL REFERENCES partner_offers(id),
    facets_spent NUMERIC(20,3) NOT NULL CHECK (facets_spent > 0),
    idempotency_key VARCHAR(128),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_redemptions_idempotency
    ON redemptions(user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_redemptions_user_created ON redemptions(user_id, created_at DESC);
`

var migration004Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_user_time ON admin_login_attempts(user_id, attempt_time);
`
