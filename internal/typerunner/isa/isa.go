// Package isa defines the bytecode instruction set architecture shared by the
// compiler and the VM: the opcode enumeration and the single "eat
// parameters" table that tells a decoder how many operand bytes follow each
// opcode, so that no visitor or validator has to special-case operand widths
// on its own.
package isa

import "fmt"

// Op is a single bytecode opcode. It occupies exactly one byte in a Module's
// bytecode buffer.
type Op byte

// Canonical opcodes. Ordering has no semantic meaning; values are stable
// once a Module has been emitted.
const (
	Halt Op = iota
	Noop

	// Atomic type constructors — push a fresh Type of the given kind.
	Any
	Unknown
	Never
	Null
	Undefined
	String
	Number
	Boolean
	BigInt
	Symbol
	True
	False

	// Literal constructors — operand is a u32 storage address.
	StringLiteral
	NumberLiteral
	BigIntLiteral

	// Frame / subroutine control.
	Frame
	Return
	TailCall
	Call

	// Branching.
	Jump
	JumpCondition

	// Structural assignability.
	Extends

	// Distributive conditional loop.
	Distribute

	// Compound constructors — operand is a u16 arity, consumed from the
	// current Frame.
	Union
	Tuple
	ObjectLiteral
	TemplateLiteral

	// Shape the top of the stack.
	TupleMember
	PropertySignature
	Array
	Rest
	RestReuse
	Parameter
	Optional
	Readonly
	Initializer
	Length
	IndexAccess

	// Generics.
	TypeArgument
	TypeArgumentDefault
	Instantiate

	// Variable / reference access.
	Loads

	// Calls that carry their own argument list rather than reusing a Frame.
	CallExpression

	// Assignability check + diagnostic.
	Assign

	// Subroutine result narrowing.
	Set

	// Reserve type-variable slots in the current frame.
	Slots

	// Widen a literal to its base type.
	Widen

	// Diagnostic emission.
	Error

	// Module header pseudo-opcodes.
	SourceMap
	Subroutine
	Main
)

var names = map[Op]string{
	Halt: "Halt", Noop: "Noop", Any: "Any", Unknown: "Unknown", Never: "Never",
	Null: "Null", Undefined: "Undefined", String: "String", Number: "Number",
	Boolean: "Boolean", BigInt: "BigInt", Symbol: "Symbol", True: "True", False: "False",
	StringLiteral: "StringLiteral", NumberLiteral: "NumberLiteral", BigIntLiteral: "BigIntLiteral",
	Frame: "Frame", Return: "Return", TailCall: "TailCall", Call: "Call",
	Jump: "Jump", JumpCondition: "JumpCondition", Extends: "Extends", Distribute: "Distribute",
	Union: "Union", Tuple: "Tuple", ObjectLiteral: "ObjectLiteral", TemplateLiteral: "TemplateLiteral",
	TupleMember: "TupleMember", PropertySignature: "PropertySignature", Array: "Array",
	Rest: "Rest", RestReuse: "RestReuse", Parameter: "Parameter", Optional: "Optional",
	Readonly: "Readonly", Initializer: "Initializer", Length: "Length", IndexAccess: "IndexAccess",
	TypeArgument: "TypeArgument", TypeArgumentDefault: "TypeArgumentDefault", Instantiate: "Instantiate",
	Loads: "Loads", CallExpression: "CallExpression", Assign: "Assign", Set: "Set",
	Slots: "Slots", Widen: "Widen", Error: "Error",
	SourceMap: "SourceMap", Subroutine: "Subroutine", Main: "Main",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", byte(op))
}

// operandWidths is the single "eat parameters" table: the number of operand
// bytes that follow each opcode in the bytecode buffer, not counting the
// opcode byte itself. Opcodes absent from this map take zero operand bytes.
var operandWidths = map[Op]int{
	StringLiteral:       4, // u32 storage address
	NumberLiteral:       4,
	BigIntLiteral:       4,
	TailCall:            6, // u32 address + u16 argument count
	Call:                6,
	Jump:                4, // i32 relative offset
	JumpCondition:       8, // i32 falseRel + i32 trueRel
	Distribute:          6, // u16 slot index + u32 end offset
	TypeArgument:        2, // u16 slot index into the active subroutine's argument frame
	Union:               2, // u16 arity
	Tuple:               2,
	ObjectLiteral:       2,
	TemplateLiteral:     2,
	TupleMember:         5, // u32 nameAddr (0xFFFFFFFF if unnamed) + u8 flags
	PropertySignature:   5, // u32 nameAddr + u8 flags
	TypeArgumentDefault: 6, // u16 slot index + u32 default-subroutine address
	Loads:               4, // u16 frameUp + u16 idx
	Instantiate:         2, // u16 type-argument count
	CallExpression:      2, // u16 argument count
	Set:                 4, // u32 subroutine address
	Slots:               2, // u16 slot count
	Error:               2, // u16 diagnostic code
	SourceMap:           4,  // u32 byte size of the source map region
	Subroutine:          11, // u32 nameAddr + u32 bodyAddr + u8 flags + u16 paramCount
}

// OperandWidth returns the number of operand bytes that follow op in the
// bytecode stream. Decoders must consult this — never hand-roll a switch —
// so that adding an opcode only ever requires one edit.
func OperandWidth(op Op) int {
	return operandWidths[op]
}

// Size is the total size in bytes of an instruction, opcode byte included.
func Size(op Op) int {
	return 1 + OperandWidth(op)
}

// SubroutineFlag is a bitset stored in a Subroutine header entry's flags byte.
type SubroutineFlag uint8

const (
	// FlagBlockTailCall marks a subroutine whose Return must always land
	// in the caller with a concrete value — e.g. because its result is
	// cached, or it is the body of a distributive conditional.
	FlagBlockTailCall SubroutineFlag = 1 << iota
)
