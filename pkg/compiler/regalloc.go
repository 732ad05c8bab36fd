package compiler

// Register is a frame-local register slot index.
type Register = uint8

// MaxRegisters is the frame size ceiling imposed by one-byte register
// operands.
const MaxRegisters = 256

// Allocator hands out frame register slots with a scope stack and a
// high-water mark. Slots are allocated bump-style; leaving a scope resets
// the bump pointer to where it was on entry, so sibling scopes reuse the
// same slots while nested live bindings never collide. The high-water mark
// across the whole function becomes the frame size.
type Allocator struct {
	next  int
	high  int
	marks []int
}

// NewAllocator returns an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{marks: make([]int, 0, 8)}
}

// Alloc claims the next free slot. ok is false when the frame would exceed
// MaxRegisters.
func (a *Allocator) Alloc() (Register, bool) {
	if a.next >= MaxRegisters {
		return 0, false
	}
	r := Register(a.next)
	a.next++
	if a.next > a.high {
		a.high = a.next
	}
	return r, true
}

// AllocRun claims n consecutive slots and returns the first. Call frames
// and keyword-pair layouts need contiguity.
func (a *Allocator) AllocRun(n int) (Register, bool) {
	if a.next+n > MaxRegisters {
		return 0, false
	}
	r := Register(a.next)
	a.next += n
	if a.next > a.high {
		a.high = a.next
	}
	return r, true
}

// Free releases a temporary. Temporaries are released strictly LIFO; a
// non-top release is a compiler bug.
func (a *Allocator) Free(r Register) {
	if int(r) != a.next-1 {
		panic("register freed out of order")
	}
	a.next--
}

// FreeRun releases a contiguous run claimed with AllocRun.
func (a *Allocator) FreeRun(r Register, n int) {
	if int(r)+n != a.next {
		panic("register run freed out of order")
	}
	a.next -= n
}

// EnterScope records the current bump pointer.
func (a *Allocator) EnterScope() {
	a.marks = append(a.marks, a.next)
}

// LeaveScope releases every slot allocated since the matching EnterScope.
func (a *Allocator) LeaveScope() {
	n := len(a.marks) - 1
	a.next = a.marks[n]
	a.marks = a.marks[:n]
}

// High reports the most slots ever live at once: the frame size.
func (a *Allocator) High() int {
	return a.high
}

// Live reports the current bump pointer, for tests and assertions.
func (a *Allocator) Live() int {
	return a.next
}
