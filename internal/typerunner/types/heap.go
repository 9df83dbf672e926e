package types

// Heap owns the two pools that back the type graph (Type and TypeRef) plus
// the bounded GC queues used to recycle Types whose Users count has dropped
// to zero. It is the Go analogue of the process-wide pool/gcQueue globals in
// original_source/src/checker/vm2.h, re-architected per spec.md §9 ("Re-
// architecture: scope them to a VM context passed explicitly") into a value
// owned by one execution context rather than a package-level global.
type Heap struct {
	types *Pool[Type]
	refs  *Pool[TypeRef]

	gcQueue    []*Type
	gcQueueRef []*TypeRef
	maxGCSize  int
}

// DefaultBlockSize matches the teacher pool's default block granularity.
const DefaultBlockSize = 2048

// DefaultMaxGCSize bounds how many dropped nodes accumulate before a flush
// is forced mid-run.
const DefaultMaxGCSize = 4096

// NewHeap creates an empty Heap.
func NewHeap() *Heap {
	return &Heap{
		types: NewPool[Type](DefaultBlockSize),
		refs:  NewPool[TypeRef](DefaultBlockSize),
		maxGCSize: DefaultMaxGCSize,
	}
}

// Allocate returns a fresh Type of the given kind with Users = 0.
func (h *Heap) Allocate(kind Kind) *Type {
	t := h.types.Allocate()
	t.Kind = kind
	t.Users = 0
	return t
}

// Use increments t's user count — called whenever a Type starts being
// co-owned by a new stack slot, child reference, or subroutine cache.
func Use(t *Type) *Type {
	t.Users++
	return t
}

// AllocRef creates an owning TypeRef pointing at target, incrementing
// target's Users — the Go analogue of useAsRef() in vm2.cpp.
func (h *Heap) AllocRef(target *Type) *TypeRef {
	target.Users++
	ref := h.refs.Allocate()
	ref.Type = target
	ref.Next = nil
	return ref
}

// Active reports the live Type and TypeRef counts, used by the property
// test that asserts both return to zero after Clear + a final stack-GC
// flush (spec.md §8).
func (h *Heap) Active() (types, refs int) {
	return h.types.Active(), h.refs.Active()
}

// Drop decrements type's user count; once it reaches zero the Type (and,
// recursively, the children it owns) is queued for collection.
func (h *Heap) Drop(t *Type) {
	if t == nil {
		return
	}
	t.Users--
	if t.Users <= 0 {
		h.gc(t)
	}
}

// DropRef releases an owning TypeRef: queues the ref itself for recycling
// and recursively drops both the Type it points at and the rest of the
// chain via Next — mirrors drop(TypeRef*) in vm2.cpp.
func (h *Heap) DropRef(ref *TypeRef) {
	if ref == nil {
		return
	}
	h.gcRef(ref)
	h.Drop(ref.Type)
	h.DropRef(ref.Next)
}

// gc enqueues t for collection, first recursively decrementing and
// enqueueing any children it owns — mirrors gc(Type*) in vm2.cpp. A forced
// flush runs if the queue is already full.
func (h *Heap) gc(t *Type) {
	if len(h.gcQueue) >= h.maxGCSize {
		h.Flush()
	}
	switch t.Kind {
	case Union, Tuple, TemplateLiteral, ObjectLiteral:
		for cur := t.Children; cur != nil; {
			next := cur.Next
			cur.Type.Users--
			if cur.Type.Users <= 0 {
				h.gc(cur.Type)
			}
			h.gcRef(cur)
			cur = next
		}
	case Array, PropertySignature, TupleMember, Rest, Parameter:
		if t.Child != nil {
			t.Child.Users--
			if t.Child.Users <= 0 {
				h.gc(t.Child)
			}
		}
	}
	h.gcQueue = append(h.gcQueue, t)
}

func (h *Heap) gcRef(ref *TypeRef) {
	if len(h.gcQueueRef) >= h.maxGCSize {
		h.FlushRefs()
	}
	h.gcQueueRef = append(h.gcQueueRef, ref)
}

// Flush processes the Type GC queue: anything whose Users is still zero is
// returned to the pool; anything re-used in the meantime (Users > 0) is
// left alone. Mirrors gcFlush() in vm2.cpp.
func (h *Heap) Flush() {
	for _, t := range h.gcQueue {
		if t.Users > 0 {
			continue
		}
		h.types.Deallocate(t)
	}
	h.gcQueue = h.gcQueue[:0]
}

// FlushRefs processes the TypeRef GC queue unconditionally — TypeRef cells
// have no further owners once dropped, unlike Types.
func (h *Heap) FlushRefs() {
	for _, ref := range h.gcQueueRef {
		h.refs.Deallocate(ref)
	}
	h.gcQueueRef = h.gcQueueRef[:0]
}

// StackGC drops every Type still referenced by the given operand stack
// slice — run once at program end per spec.md §4.5 ("Stack GC").
func (h *Heap) StackGC(stack []*Type) {
	for _, t := range stack {
		h.Drop(t)
	}
}

// Clear empties both pools and GC queues, releasing every live Type and
// TypeRef at once. Safe only when no external pointer into the heap is
// expected to outlive the call (spec.md §5).
func (h *Heap) Clear() {
	h.types.Clear()
	h.refs.Clear()
	h.gcQueue = h.gcQueue[:0]
	h.gcQueueRef = h.gcQueueRef[:0]
}
