package store

import (
	"database/sql"

	"github.com/shopspring/decimal"

	wsjerrors "github.com/mezonai/mmn/errors"
	"github.com/mezonai/mmn/types"
)

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed amount: "+err.Error())
	}
	return d, nil
}

// InsertBlock UPSERTs b into the shard its number belongs to, and, if
// b declares a super-block reference, mirrors it into the side
// database first. Locks are acquired super-block then shard, matching
// the fixed order the rest of the store observes.
func (s *Store) InsertBlock(b *types.StoredBlock) error {
	if b.IsSuperBlock() {
		if err := s.insertSuperBlock(b); err != nil {
			return err
		}
	}

	db, err := s.seek(b.Num)
	if err != nil {
		return err
	}

	txField := encodeTransactionsField(b.TxIDs)
	sigField := encodeSignaturesField(b.Signatures)
	segField := encodeSuperBlockSegments(b.SuperBlockSegments)

	_, err = db.Exec(`
		INSERT INTO blocks (
			blockNum, blockChecksum, lastBlockChecksum, walletStateChecksum,
			sigFreezeChecksum, difficulty, powField, transactions, signatures,
			timestamp, version, compactedSigs, lastSuperBlockChecksum,
			lastSuperBlockNum, superBlockSegments, blockProposer
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(blockNum) DO UPDATE SET
			blockChecksum = excluded.blockChecksum,
			lastBlockChecksum = excluded.lastBlockChecksum,
			walletStateChecksum = excluded.walletStateChecksum,
			sigFreezeChecksum = excluded.sigFreezeChecksum,
			difficulty = excluded.difficulty,
			powField = excluded.powField,
			transactions = excluded.transactions,
			signatures = excluded.signatures,
			timestamp = excluded.timestamp,
			version = excluded.version,
			compactedSigs = excluded.compactedSigs,
			lastSuperBlockChecksum = excluded.lastSuperBlockChecksum,
			lastSuperBlockNum = excluded.lastSuperBlockNum,
			superBlockSegments = excluded.superBlockSegments,
			blockProposer = excluded.blockProposer;
	`,
		b.Num, b.Checksum, b.PrevChecksum, b.WalletStateChecksum,
		b.SigFreezeChecksum, b.Difficulty, b.PowField, txField, sigField,
		b.Timestamp, b.Version, b.CompactedSigs, b.LastSuperBlockChecksum,
		b.LastSuperBlockNum, segField, b.BlockProposer,
	)
	if err != nil {
		return wsjerrors.New(wsjerrors.CodeIOFault, "insert block: "+err.Error())
	}

	s.shardMu.Lock()
	if b.Num > s.tip {
		s.tip = b.Num
	}
	s.shardMu.Unlock()
	return nil
}

func (s *Store) insertSuperBlock(b *types.StoredBlock) error {
	s.superMu.Lock()
	defer s.superMu.Unlock()

	payload := encodeSuperBlockSegments(b.SuperBlockSegments)
	_, err := s.superConn.Exec(`
		INSERT INTO superblocks (blockNum, blockChecksum, lastSuperBlockChecksum, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(blockNum) DO UPDATE SET
			blockChecksum = excluded.blockChecksum,
			lastSuperBlockChecksum = excluded.lastSuperBlockChecksum,
			payload = excluded.payload;
	`, b.Num, b.Checksum, b.LastSuperBlockChecksum, payload)
	if err != nil {
		return wsjerrors.New(wsjerrors.CodeIOFault, "insert super block: "+err.Error())
	}
	return nil
}

// InsertTransaction writes t into the shard selected by t.Applied. The
// data blob is byte-reversed on write and to_list/from_list are
// rendered as address:amount pairs.
func (s *Store) InsertTransaction(t *types.StoredTransaction) error {
	db, err := s.seek(t.Applied)
	if err != nil {
		return err
	}

	toField := encodeAddrAmountList(t.ToList)
	fromField := encodeAddrAmountList(t.FromList)
	shuffled := shuffle(t.Data)

	_, err = db.Exec(`
		INSERT INTO transactions (
			id, type, amount, fee, toList, fromList, data, dataChecksum,
			blockHeight, nonce, timestamp, checksum, signature, pubKey,
			applied, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			amount = excluded.amount,
			fee = excluded.fee,
			toList = excluded.toList,
			fromList = excluded.fromList,
			data = excluded.data,
			dataChecksum = excluded.dataChecksum,
			blockHeight = excluded.blockHeight,
			nonce = excluded.nonce,
			timestamp = excluded.timestamp,
			checksum = excluded.checksum,
			signature = excluded.signature,
			pubKey = excluded.pubKey,
			applied = excluded.applied,
			version = excluded.version;
	`,
		idKey(t.ID), t.Type, t.Amount.String(), t.Fee.String(), toField, fromField,
		shuffled, t.DataChecksum, t.BlockHeight, t.Nonce, t.Timestamp,
		t.Checksum, t.Signature, t.PubKey, t.Applied, t.Version,
	)
	if err != nil {
		return wsjerrors.New(wsjerrors.CodeIOFault, "insert transaction: "+err.Error())
	}
	return nil
}

// GetBlockByNumber seeks to the shard containing n and reads the row.
// Returns (nil, nil) if n exceeds the cached tip or no row exists.
func (s *Store) GetBlockByNumber(n uint64) (*types.StoredBlock, error) {
	if n > s.Tip() {
		return nil, nil
	}
	db, err := s.seek(n)
	if err != nil {
		return nil, err
	}
	return scanBlockRow(db.QueryRow(blockSelectSQL+" WHERE blockNum = ? LIMIT 1;", n))
}

// GetBlockByHash starts at the currently-seeked shard and, on miss,
// walks shards downward from the tip until found or exhausted.
func (s *Store) GetBlockByHash(hash []byte) (*types.StoredBlock, error) {
	s.shardMu.Lock()
	active := s.activeConn
	tip := s.tip
	max := s.maxPerDB
	s.shardMu.Unlock()

	if active != nil {
		b, err := scanBlockRow(active.QueryRow(blockSelectSQL+" WHERE blockChecksum = ? LIMIT 1;", hash))
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
	}

	for shard := shardFor(tip, max); ; {
		db, err := s.seek(shard)
		if err != nil {
			return nil, err
		}
		b, err := scanBlockRow(db.QueryRow(blockSelectSQL+" WHERE blockChecksum = ? LIMIT 1;", hash))
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
		if shard == 0 {
			break
		}
		shard -= max
	}
	return nil, nil
}

// GetSuperBlockByHash queries the super-block side database directly.
func (s *Store) GetSuperBlockByHash(hash []byte) (num uint64, lastSuperBlockChecksum []byte, segments []types.SuperBlockSegment, found bool, err error) {
	s.superMu.Lock()
	defer s.superMu.Unlock()

	var payload []byte
	row := s.superConn.QueryRow(`SELECT blockNum, lastSuperBlockChecksum, payload FROM superblocks WHERE blockChecksum = ? LIMIT 1;`, hash)
	if scanErr := row.Scan(&num, &lastSuperBlockChecksum, &payload); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, nil, nil, false, nil
		}
		return 0, nil, nil, false, wsjerrors.New(wsjerrors.CodeIOFault, "read super block: "+scanErr.Error())
	}
	segments, err = decodeSuperBlockSegments(payload)
	if err != nil {
		return 0, nil, nil, false, err
	}
	return num, lastSuperBlockChecksum, segments, true, nil
}

// GetTransactionByID tries the currently-seeked shard first; on miss it
// decodes the block height embedded in id and scans forward at most
// the store's configured redacted window worth of shards from there.
func (s *Store) GetTransactionByID(id []byte) (*types.StoredTransaction, error) {
	s.shardMu.Lock()
	active := s.activeConn
	max := s.maxPerDB
	redactedWindow := s.redactedWindow
	s.shardMu.Unlock()

	key := idKey(id)

	if active != nil {
		t, err := scanTransactionRow(active.QueryRow(txSelectSQL+" WHERE id = ? LIMIT 1;", key))
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	height, err := blockHeightFromTxID(id)
	if err != nil {
		return nil, err
	}

	start := shardFor(height, max)
	end := start + redactedWindow
	for shard := start; shard <= end; shard += max {
		db, err := s.seek(shard)
		if err != nil {
			return nil, err
		}
		t, err := scanTransactionRow(db.QueryRow(txSelectSQL+" WHERE id = ? LIMIT 1;", key))
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

// GetTransactionsInBlock returns every transaction with applied = n,
// optionally filtered to a single type.
func (s *Store) GetTransactionsInBlock(n uint64, txType *uint32) ([]*types.StoredTransaction, error) {
	db, err := s.seek(n)
	if err != nil {
		return nil, err
	}

	query := txSelectSQL + " WHERE applied = ?"
	args := []interface{}{n}
	if txType != nil {
		query += " AND type = ?"
		args = append(args, *txType)
	}
	rows, err := db.Query(query+";", args...)
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeIOFault, "query transactions in block: "+err.Error())
	}
	defer rows.Close()

	var out []*types.StoredTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RemoveBlock deletes block n and every transaction with applied = n
// first. Refused when the store is configured archival.
func (s *Store) RemoveBlock(n uint64) error {
	if s.archival {
		return wsjerrors.New(wsjerrors.CodeIOFault, "archival store refuses block removal")
	}
	db, err := s.seek(n)
	if err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM transactions WHERE applied = ?;`, n); err != nil {
		return wsjerrors.New(wsjerrors.CodeIOFault, "remove block transactions: "+err.Error())
	}
	if _, err := db.Exec(`DELETE FROM blocks WHERE blockNum = ?;`, n); err != nil {
		return wsjerrors.New(wsjerrors.CodeIOFault, "remove block: "+err.Error())
	}
	return nil
}

// RemoveTransaction deletes a single transaction row by id, seeking
// the shard it was declared applied in. Refused when archival.
func (s *Store) RemoveTransaction(id []byte, applied uint64) error {
	if s.archival {
		return wsjerrors.New(wsjerrors.CodeIOFault, "archival store refuses transaction removal")
	}
	db, err := s.seek(applied)
	if err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM transactions WHERE id = ?;`, idKey(id)); err != nil {
		return wsjerrors.New(wsjerrors.CodeIOFault, "remove transaction: "+err.Error())
	}
	return nil
}

const blockSelectSQL = `SELECT blockNum, blockChecksum, lastBlockChecksum, walletStateChecksum,
	sigFreezeChecksum, difficulty, powField, transactions, signatures, timestamp,
	version, compactedSigs, lastSuperBlockChecksum, lastSuperBlockNum, superBlockSegments,
	blockProposer FROM blocks`

const txSelectSQL = `SELECT id, type, amount, fee, toList, fromList, data, dataChecksum,
	blockHeight, nonce, timestamp, checksum, signature, pubKey, applied, version FROM transactions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlockRow(row rowScanner) (*types.StoredBlock, error) {
	b := &types.StoredBlock{}
	var txField, sigField string
	var segField, lastSuperBlockChecksum, blockProposer []byte
	var compactedSigs sql.NullBool
	var lastSuperBlockNum sql.NullInt64

	err := row.Scan(
		&b.Num, &b.Checksum, &b.PrevChecksum, &b.WalletStateChecksum,
		&b.SigFreezeChecksum, &b.Difficulty, &b.PowField, &txField, &sigField,
		&b.Timestamp, &b.Version, &compactedSigs, &lastSuperBlockChecksum,
		&lastSuperBlockNum, &segField, &blockProposer,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeIOFault, "scan block row: "+err.Error())
	}

	b.CompactedSigs = compactedSigs.Bool
	b.LastSuperBlockChecksum = lastSuperBlockChecksum
	b.BlockProposer = blockProposer
	b.LastSuperBlockNum = uint64(lastSuperBlockNum.Int64)

	b.TxIDs, err = decodeTransactionsField(txField)
	if err != nil {
		return nil, err
	}
	b.Signatures, err = decodeSignaturesField(sigField)
	if err != nil {
		return nil, err
	}
	b.SuperBlockSegments, err = decodeSuperBlockSegments(segField)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanTransactionRow(row rowScanner) (*types.StoredTransaction, error) {
	return scanTransaction(row)
}

func scanTransaction(row rowScanner) (*types.StoredTransaction, error) {
	t := &types.StoredTransaction{}
	var idKeyStr, amountStr, feeStr, toField, fromField string
	var shuffledData []byte

	err := row.Scan(
		&idKeyStr, &t.Type, &amountStr, &feeStr, &toField, &fromField,
		&shuffledData, &t.DataChecksum, &t.BlockHeight, &t.Nonce, &t.Timestamp,
		&t.Checksum, &t.Signature, &t.PubKey, &t.Applied, &t.Version,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeIOFault, "scan transaction row: "+err.Error())
	}

	t.ID, err = idFromKey(idKeyStr)
	if err != nil {
		return nil, err
	}
	t.Amount, err = parseAmount(amountStr)
	if err != nil {
		return nil, err
	}
	t.Fee, err = parseAmount(feeStr)
	if err != nil {
		return nil, err
	}
	t.ToList, err = decodeAddrAmountList(toField)
	if err != nil {
		return nil, err
	}
	t.FromList, err = decodeAddrAmountList(fromField)
	if err != nil {
		return nil, err
	}
	t.Data = shuffle(shuffledData)
	return t, nil
}
