// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

package vm

// userdataValue is a full userdata: an opaque Go value wrapped so it can
// flow through the stack and be addressed by a Lua program, per §3's
// "Userdata" variant. Unlike tables and threads, a userdata's payload is
// never interpreted by the VM; Go host code (via [CheckUserdata] and
// friends) is the only thing that unwraps data.
//
// Each full userdata carries its own metatable (set with
// [*State.SetMetatable]), distinct from the single metatable that
// [*State.typeMetatables] assigns to the other non-table types, and an
// optional user-value table for associated Lua state -- matching the
// traversal rule in §4.1: "Userdata: visit the metatable and the
// associated user-value table."
type userdataValue struct {
	id        uint64
	data      any
	meta      *table
	userValue *table
}

func newUserdata(data any) *userdataValue {
	return &userdataValue{id: nextID(), data: data}
}

func (u *userdataValue) valueType() Type { return TypeUserdata }

// NewUserdata pushes a new full userdata wrapping data onto the stack.
func (l *State) NewUserdata(data any) {
	l.init()
	l.push(newUserdata(data))
}

// ToUserdata returns the Go value wrapped by the full userdata at the
// given index, and whether the value at that index was in fact a full
// userdata.
func (l *State) ToUserdata(idx int) (_ any, isUserdata bool) {
	l.init()
	v, _, err := l.valueByIndex(idx)
	if err != nil {
		return nil, false
	}
	ud, ok := v.(*userdataValue)
	if !ok {
		return nil, false
	}
	return ud.data, true
}

// UserValue pushes the user-value table associated with the full
// userdata at the given index, creating one if it did not already
// exist, and reports whether the value at idx was a full userdata.
func (l *State) UserValue(idx int) (ok bool) {
	l.init()
	v, _, err := l.valueByIndex(idx)
	if err != nil {
		panic(err)
	}
	ud, ok := v.(*userdataValue)
	if !ok {
		return false
	}
	if ud.userValue == nil {
		ud.userValue = newTable(0)
	}
	l.push(ud.userValue)
	return true
}
