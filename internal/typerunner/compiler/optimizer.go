package compiler

import "github.com/tsvm/typerunner/internal/typerunner/isa"

// optimize runs the section-tree pass described in spec.md §4.4 as a
// top-down walk: propagate terminality from the body's root down through
// conditional arms, then rewrite every terminal Call to TailCall and every
// terminal Rest to RestReuse in place. Both rewrites only ever swap a
// single opcode byte — Call/TailCall share the same 6-byte operand layout,
// and Rest/RestReuse are both bare opcodes — so no other byte in the body
// moves and no address patch needs recomputing.
func optimize(body *bodyBuilder) {
	if body.root == nil {
		return
	}
	propagateTerminality(body.root)
	applyRewrites(body.root, body.code)
}

func applyRewrites(s *Section, code []byte) {
	if s.Terminal {
		switch s.Kind {
		case SectionCall:
			code[s.CodeOffset] = byte(isa.TailCall)
		case SectionRest:
			code[s.CodeOffset] = byte(isa.RestReuse)
		}
	}
	for _, c := range s.Children {
		applyRewrites(c, code)
	}
}
