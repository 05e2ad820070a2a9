/*
SQLiteTransferDB implements orchestrator.Journal on SQLite.
Tables are transfers and transfer_mints.

Internally,

1) Hashes and addresses are stored as their 0x-prefixed hex string.
2) UpdatedAt is stored as a unix timestamp (seconds).
3) Journal writes are upserts keyed by TransferID, so replaying a
   stage transition overwrites rather than duplicates.
*/
package transferdb

import (
	"database/sql"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stablemesh-io/cctp-bridge-go/orchestrator"
)

type SQLiteTransferDB struct {
	db *sql.DB
}

func NewSQLiteTransferDB(dbPath string) (*SQLiteTransferDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	storage := &SQLiteTransferDB{db: db}
	if err := storage.init(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteTransferDB) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS transfers (
		TransferID TEXT PRIMARY KEY,
		SourceChain TEXT,
		Initiator TEXT,
		Recipients INTEGER,
		Stage TEXT,
		QueueID TEXT,
		BurnTxHash TEXT,
		Detail TEXT,
		UpdatedAt INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_transfers_stage ON transfers (Stage);
	CREATE TABLE IF NOT EXISTS transfer_mints (
		TransferID TEXT,
		Chain TEXT,
		MintTxHash TEXT,
		PRIMARY KEY (TransferID, Chain)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteTransferDB) Close() error {
	return s.db.Close()
}

// Implementation of orchestrator.Journal

func (s *SQLiteTransferDB) RecordStart(
	transferID, sourceChain string,
	initiator ethcommon.Address,
	recipients int,
) error {
	query := `
	INSERT INTO transfers (TransferID, SourceChain, Initiator, Recipients, Stage, QueueID, BurnTxHash, Detail, UpdatedAt)
	VALUES (?, ?, ?, ?, ?, '', '', '', ?);
	`
	_, err := s.db.Exec(query,
		transferID, sourceChain, initiator.Hex(), int64(recipients),
		string(orchestrator.StageIdle), time.Now().Unix())
	return err
}

func (s *SQLiteTransferDB) RecordStage(transferID string, stage orchestrator.Stage, detail string) error {
	query := `
	UPDATE transfers SET Stage = ?, Detail = ?, UpdatedAt = ? WHERE TransferID = ?;
	`
	_, err := s.db.Exec(query, string(stage), detail, time.Now().Unix(), transferID)
	return err
}

func (s *SQLiteTransferDB) RecordBurn(transferID, queueID string, burnTx ethcommon.Hash) error {
	query := `
	UPDATE transfers SET QueueID = ?, BurnTxHash = ?, UpdatedAt = ? WHERE TransferID = ?;
	`
	_, err := s.db.Exec(query, queueID, burnTx.Hex(), time.Now().Unix(), transferID)
	return err
}

func (s *SQLiteTransferDB) RecordMint(transferID, destChain string, mintTx ethcommon.Hash) error {
	query := `
	INSERT INTO transfer_mints (TransferID, Chain, MintTxHash)
	VALUES (?, ?, ?)
	ON CONFLICT (TransferID, Chain) DO UPDATE SET MintTxHash = excluded.MintTxHash;
	`
	_, err := s.db.Exec(query, transferID, destChain, mintTx.Hex())
	return err
}

// Read side, used by the reporter for post-restart inspection.

// GetTransfer returns one transfer row, or nil if not found.
func (s *SQLiteTransferDB) GetTransfer(transferID string) (*TransferRecord, error) {
	query := `
	SELECT TransferID, SourceChain, Initiator, Recipients, Stage, QueueID, BurnTxHash, Detail, UpdatedAt
	FROM transfers WHERE TransferID = ?;
	`
	row := s.db.QueryRow(query, transferID)

	r := &TransferRecord{}
	var updatedAt int64
	err := row.Scan(&r.TransferID, &r.SourceChain, &r.Initiator, &r.Recipients,
		&r.Stage, &r.QueueID, &r.BurnTxHash, &r.Detail, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return r, nil
}

// GetTransfersByStage returns every transfer row in the given stage.
func (s *SQLiteTransferDB) GetTransfersByStage(stage orchestrator.Stage) ([]*TransferRecord, error) {
	query := `
	SELECT TransferID, SourceChain, Initiator, Recipients, Stage, QueueID, BurnTxHash, Detail, UpdatedAt
	FROM transfers WHERE Stage = ?;
	`
	rows, err := s.db.Query(query, string(stage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*TransferRecord
	for rows.Next() {
		r := &TransferRecord{}
		var updatedAt int64
		if err := rows.Scan(&r.TransferID, &r.SourceChain, &r.Initiator, &r.Recipients,
			&r.Stage, &r.QueueID, &r.BurnTxHash, &r.Detail, &updatedAt); err != nil {
			return nil, err
		}
		r.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMints returns the per-chain mint rows of one transfer,
// result can be empty slice (if none confirmed yet).
func (s *SQLiteTransferDB) GetMints(transferID string) ([]*MintRecord, error) {
	query := `
	SELECT TransferID, Chain, MintTxHash FROM transfer_mints WHERE TransferID = ?;
	`
	rows, err := s.db.Query(query, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mints []*MintRecord
	for rows.Next() {
		m := &MintRecord{}
		if err := rows.Scan(&m.TransferID, &m.Chain, &m.MintTxHash); err != nil {
			return nil, err
		}
		mints = append(mints, m)
	}
	return mints, rows.Err()
}
