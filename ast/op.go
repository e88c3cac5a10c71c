package ast

import (
	"strings"

	"github.com/smasher164/zs/lexer"
)

type Operator uint32

const (
	OpAdd Operator = 1 << iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpBitNot

	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe

	OpAnd
	OpOr
	OpNot
)

const (
	ArithmeticMask = OpAdd | OpSub | OpMul | OpDiv | OpMod | OpNeg
	BitwiseMask    = OpBitAnd | OpBitOr | OpBitXor | OpShl | OpShr | OpBitNot
	ComparisonMask = OpEq | OpNe | OpLt | OpGt | OpLe | OpGe
	LogicMask      = OpAnd | OpOr | OpNot
)

func (o Operator) Is(mask Operator) bool { return o&mask != 0 }

var opSymbols = map[Operator]string{
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpMod:    "%",
	OpNeg:    "-",
	OpBitAnd: "&",
	OpBitOr:  "|",
	OpBitXor: "^",
	OpShl:    "<<",
	OpShr:    ">>",
	OpBitNot: "~",
	OpEq:     "==",
	OpNe:     "<>",
	OpLt:     "<",
	OpGt:     ">",
	OpLe:     "<=",
	OpGe:     ">=",
	OpAnd:    "and",
	OpOr:     "or",
	OpNot:    "not",
}

func (o Operator) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	var parts []string
	for bit := OpAdd; bit <= OpNot; bit <<= 1 {
		if o&bit != 0 {
			parts = append(parts, opSymbols[bit])
		}
	}
	return strings.Join(parts, "|")
}

var binaryOps = map[lexer.TokenType]Operator{
	lexer.Plus:              OpAdd,
	lexer.Minus:             OpSub,
	lexer.Times:             OpMul,
	lexer.Divide:            OpDiv,
	lexer.Remainder:         OpMod,
	lexer.And:               OpBitAnd,
	lexer.Or:                OpBitOr,
	lexer.Caret:             OpBitXor,
	lexer.LeftShift:         OpShl,
	lexer.RightShift:        OpShr,
	lexer.LogicalEquals:     OpEq,
	lexer.NotEquals:         OpNe,
	lexer.LessThan:          OpLt,
	lexer.GreaterThan:       OpGt,
	lexer.LessThanEquals:    OpLe,
	lexer.GreaterThanEquals: OpGe,
	lexer.LogicalAnd:        OpAnd,
	lexer.LogicalOr:         OpOr,
}

var unaryOps = map[lexer.TokenType]Operator{
	lexer.Minus:      OpNeg,
	lexer.Tilde:      OpBitNot,
	lexer.LogicalNot: OpNot,
}

func BinaryOp(t lexer.TokenType) (Operator, bool) {
	op, ok := binaryOps[t]
	return op, ok
}

func UnaryOp(t lexer.TokenType) (Operator, bool) {
	op, ok := unaryOps[t]
	return op, ok
}
