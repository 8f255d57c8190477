// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "fmt"

// Kind identifies what family of record an event mutates and whether
// it is a mutation or a tombstone. Kind numbers are wire constants:
// they participate in the event identity preimage and must never be
// renumbered.
type Kind uint32

const (
	KindMutateUser    Kind = 100000
	KindDeleteUser    Kind = 100001
	KindMutateSpace   Kind = 100002
	KindDeleteSpace   Kind = 100003
	KindMutateProgram Kind = 100004
	KindDeleteProgram Kind = 100005
	KindMutateSchema  Kind = 100006
	KindDeleteSchema  Kind = 100007
	KindMutateRow     Kind = 100008
	KindDeleteRow     Kind = 100009
)

var kindNames = map[Kind]string{
	KindMutateUser:    "mutate_user",
	KindDeleteUser:    "delete_user",
	KindMutateSpace:   "mutate_space",
	KindDeleteSpace:   "delete_space",
	KindMutateProgram: "mutate_program",
	KindDeleteProgram: "delete_program",
	KindMutateSchema:  "mutate_schema",
	KindDeleteSchema:  "delete_schema",
	KindMutateRow:     "mutate_row",
	KindDeleteRow:     "delete_row",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Valid reports whether k is one of the defined kind constants.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsDelete reports whether k is a tombstone kind. Defined kinds come
// in mutate/delete pairs with the delete on the odd number.
func (k Kind) IsDelete() bool {
	return k.Valid() && k%2 == 1
}

// IsMutate reports whether k is a mutation kind.
func (k Kind) IsMutate() bool {
	return k.Valid() && k%2 == 0
}

// Tombstone returns the delete kind paired with a mutation kind. It
// returns k unchanged if k is already a tombstone.
func (k Kind) Tombstone() Kind {
	if k.IsMutate() {
		return k + 1
	}
	return k
}
