/*
 * Copyright 2024-2026 FairCredit Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"fmt"

	"github.com/jinzhu/gorm"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
)

// genesisHash seeds the chain before the first entry is committed
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one committed instruction in the append-only registry journal;
// each entry hash chains to its predecessor so any rewrite of history is
// detectable from the head
type Entry struct {
	provide.Model

	Height       uint64  `sql:"not null" json:"height"`
	Subject      *string `sql:"not null" json:"subject"` // record address the instruction touched
	Instruction  *string `sql:"not null" json:"instruction"`
	PayloadHash  *string `sql:"not null" json:"payload_hash"`
	PreviousHash *string `sql:"not null" json:"previous_hash"`
	EntryHash    *string `sql:"not null" json:"entry_hash"`
}

// TableName returns the journal table name
func (Entry) TableName() string {
	return "journal_entries"
}

// ComputeEntryHash chains an entry to its predecessor
func ComputeEntryHash(previousHash, subject, instruction, payloadHash string) string {
	return common.SHA256(fmt.Sprintf("%s|%s|%s|%s", previousHash, subject, instruction, payloadHash))
}

// Head returns the latest journal entry, or nil for an empty journal
func Head(db *gorm.DB) *Entry {
	entry := &Entry{}
	db.Order("height desc").First(&entry)
	if entry.Subject == nil {
		return nil
	}
	return entry
}

// Append commits a journal entry inside the caller's transaction, chaining it
// to the current head; the entry commits or rolls back atomically with the
// instruction's record mutations
func Append(tx *gorm.DB, subject, instruction string, payload []byte) error {
	previousHash := genesisHash
	height := uint64(0)

	if head := Head(tx); head != nil {
		previousHash = *head.EntryHash
		height = head.Height + 1
	}

	payloadHash := common.SHA256(string(payload))
	entryHash := ComputeEntryHash(previousHash, subject, instruction, payloadHash)

	entry := &Entry{
		Height:       height,
		Subject:      common.StringOrNil(subject),
		Instruction:  common.StringOrNil(instruction),
		PayloadHash:  common.StringOrNil(payloadHash),
		PreviousHash: common.StringOrNil(previousHash),
		EntryHash:    common.StringOrNil(entryHash),
	}

	result := tx.Create(&entry)
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}

	common.Log.Tracef("journaled %s instruction for subject %s at height %d", instruction, subject, height)
	return nil
}
