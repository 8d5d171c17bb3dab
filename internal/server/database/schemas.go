package database

const schema = `
CREATE TABLE IF NOT EXISTS timers (
    name TEXT PRIMARY KEY NOT NULL,
    total_seconds INTEGER NOT NULL,
    seconds_left INTEGER NOT NULL,
    loop BOOLEAN NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS store_revision (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    revision INTEGER NOT NULL
);

INSERT OR IGNORE INTO store_revision (id, revision) VALUES (1, 0);
`
