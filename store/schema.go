package store

import (
	"database/sql"
	"fmt"

	"github.com/mezonai/mmn/logx"
)

const createBlocksTableSQL = `
CREATE TABLE IF NOT EXISTS blocks (
	blockNum INTEGER PRIMARY KEY,
	blockChecksum BLOB,
	lastBlockChecksum BLOB,
	walletStateChecksum BLOB,
	sigFreezeChecksum BLOB,
	difficulty INTEGER,
	powField BLOB,
	transactions TEXT,
	signatures TEXT,
	timestamp INTEGER,
	version INTEGER
);
`

const createTransactionsTableSQL = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	type INTEGER,
	amount TEXT,
	fee TEXT,
	toList TEXT,
	data BLOB,
	blockHeight INTEGER,
	nonce INTEGER,
	timestamp INTEGER,
	checksum BLOB,
	signature BLOB,
	pubKey BLOB,
	applied INTEGER,
	version INTEGER
);
`

// migrationColumns lists the columns a shard migration must add if
// missing, together with the index each one needs. This yields
// forward compatibility with older shard files that predate a given
// column, via an incremental ALTER-TABLE-on-open convention.
type migrationColumn struct {
	table  string
	column string
	ddl    string
	index  string // empty means no index
}

var migrationColumns = []migrationColumn{
	{table: "transactions", column: "fromList", ddl: "TEXT", index: "idx_transactions_fromList"},
	{table: "transactions", column: "dataChecksum", ddl: "BLOB", index: ""},
	{table: "blocks", column: "compactedSigs", ddl: "INTEGER", index: ""},
	{table: "blocks", column: "lastSuperBlockChecksum", ddl: "BLOB", index: ""},
	{table: "blocks", column: "lastSuperBlockNum", ddl: "INTEGER", index: ""},
	{table: "blocks", column: "superBlockSegments", ddl: "BLOB", index: ""},
	{table: "blocks", column: "blockProposer", ddl: "BLOB", index: ""},
}

var baseIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_toList ON transactions(toList);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_applied ON transactions(applied);`,
}

// migrateShard creates the base schema if absent and then introspects
// existing tables, adding any column named in migrationColumns that is
// missing, each with its noted index.
func migrateShard(db *sql.DB) error {
	if _, err := db.Exec(createBlocksTableSQL); err != nil {
		return fmt.Errorf("create blocks table: %w", err)
	}
	if _, err := db.Exec(createTransactionsTableSQL); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	for _, idx := range baseIndexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("create base index: %w", err)
		}
	}

	existing, err := tableColumns(db, "transactions")
	if err != nil {
		return err
	}
	existingBlocks, err := tableColumns(db, "blocks")
	if err != nil {
		return err
	}

	for _, mc := range migrationColumns {
		cols := existing
		if mc.table == "blocks" {
			cols = existingBlocks
		}
		if _, ok := cols[mc.column]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", mc.table, mc.column, mc.ddl)
		if _, err := db.Exec(alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", mc.table, mc.column, err)
		}
		logx.Info("STORE", fmt.Sprintf("migrated shard: added %s.%s", mc.table, mc.column))
		if mc.index != "" {
			idxSQL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);", mc.index, mc.table, mc.column)
			if _, err := db.Exec(idxSQL); err != nil {
				return fmt.Errorf("create index %s: %w", mc.index, err)
			}
		}
	}
	return nil
}

// tableColumns introspects table via PRAGMA table_info, returning the
// set of column names currently present.
func tableColumns(db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info row: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

const createSuperBlocksTableSQL = `
CREATE TABLE IF NOT EXISTS superblocks (
	blockNum INTEGER PRIMARY KEY,
	blockChecksum BLOB,
	lastSuperBlockChecksum BLOB,
	payload BLOB
);
CREATE INDEX IF NOT EXISTS idx_superblocks_blockChecksum ON superblocks(blockChecksum);
CREATE INDEX IF NOT EXISTS idx_superblocks_lastSuperBlockChecksum ON superblocks(lastSuperBlockChecksum);
`

func migrateSuperBlockDB(db *sql.DB) error {
	if _, err := db.Exec(createSuperBlocksTableSQL); err != nil {
		return fmt.Errorf("create superblocks table: %w", err)
	}
	return nil
}
