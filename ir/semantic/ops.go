package semantic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/pdfredact/scanner"
)

// ParseOperations tokenizes a decoded content stream into operations.
// Unknown operators are kept verbatim so round-tripping preserves
// content the tool does not interpret.
func ParseOperations(data []byte) ([]Operation, error) {
	sc := scanner.New(bytes.NewReader(data), scanner.Config{})

	var ops []Operation
	var stack []Operand
	for {
		tok, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch tok.Type {
		case scanner.TokenNumber:
			stack = append(stack, NumberOperand{Value: tokenFloat(tok)})
		case scanner.TokenName:
			stack = append(stack, NameOperand{Value: tok.Str})
		case scanner.TokenString:
			stack = append(stack, StringOperand{Value: tok.Bytes})
		case scanner.TokenBoolean:
			stack = append(stack, BoolOperand{Value: tok.Bool})
		case scanner.TokenNull:
			stack = append(stack, NullOperand{})
		case scanner.TokenArray:
			arr, err := parseOperandArray(sc)
			if err != nil {
				return nil, err
			}
			stack = append(stack, arr)
		case scanner.TokenDict:
			dict, err := parseOperandDict(sc)
			if err != nil {
				return nil, err
			}
			stack = append(stack, dict)
		case scanner.TokenRef:
			// Content streams have no indirect references; two numbers
			// followed by an operator starting with R cannot reach here
			// because the scanner requires a delimiter after R.
			stack = append(stack,
				NumberOperand{Value: float64(tok.Int)},
				NumberOperand{Value: float64(tok.Gen)})
		case scanner.TokenInlineImage:
			// Key/value pairs between BI and ID are sitting on the stack.
			img := DictOperand{Values: make(map[string]Operand)}
			for i := 0; i+1 < len(stack); i += 2 {
				if name, ok := stack[i].(NameOperand); ok {
					img.Values[name.Value] = stack[i+1]
				}
			}
			ops = append(ops, Operation{
				Operator: "INLINE_IMAGE",
				Operands: []Operand{InlineImageOperand{Image: img, Data: tok.Bytes}},
			})
			stack = nil
		case scanner.TokenKeyword:
			if tok.Str == "BI" {
				// Inline image dict entries follow until ID.
				continue
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: stack})
			stack = nil
		default:
			return nil, fmt.Errorf("unexpected token %v in content stream", tok.Type)
		}
	}
	return ops, nil
}

func parseOperandArray(sc scanner.Scanner) (ArrayOperand, error) {
	var arr ArrayOperand
	for {
		tok, err := sc.Next()
		if err != nil {
			return arr, fmt.Errorf("unterminated array: %w", err)
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			if tok.Str == "]" {
				return arr, nil
			}
			return arr, fmt.Errorf("unexpected keyword %q in array", tok.Str)
		case scanner.TokenNumber:
			arr.Values = append(arr.Values, NumberOperand{Value: tokenFloat(tok)})
		case scanner.TokenName:
			arr.Values = append(arr.Values, NameOperand{Value: tok.Str})
		case scanner.TokenString:
			arr.Values = append(arr.Values, StringOperand{Value: tok.Bytes})
		case scanner.TokenBoolean:
			arr.Values = append(arr.Values, BoolOperand{Value: tok.Bool})
		case scanner.TokenNull:
			arr.Values = append(arr.Values, NullOperand{})
		case scanner.TokenArray:
			inner, err := parseOperandArray(sc)
			if err != nil {
				return arr, err
			}
			arr.Values = append(arr.Values, inner)
		case scanner.TokenDict:
			inner, err := parseOperandDict(sc)
			if err != nil {
				return arr, err
			}
			arr.Values = append(arr.Values, inner)
		default:
			return arr, fmt.Errorf("unexpected token %v in array", tok.Type)
		}
	}
}

func parseOperandDict(sc scanner.Scanner) (DictOperand, error) {
	dict := DictOperand{Values: make(map[string]Operand)}
	for {
		keyTok, err := sc.Next()
		if err != nil {
			return dict, fmt.Errorf("unterminated dict: %w", err)
		}
		if keyTok.Type == scanner.TokenKeyword && keyTok.Str == ">>" {
			return dict, nil
		}
		if keyTok.Type != scanner.TokenName {
			return dict, fmt.Errorf("dict key is not a name")
		}
		valTok, err := sc.Next()
		if err != nil {
			return dict, fmt.Errorf("unterminated dict: %w", err)
		}
		switch valTok.Type {
		case scanner.TokenNumber:
			dict.Values[keyTok.Str] = NumberOperand{Value: tokenFloat(valTok)}
		case scanner.TokenName:
			dict.Values[keyTok.Str] = NameOperand{Value: valTok.Str}
		case scanner.TokenString:
			dict.Values[keyTok.Str] = StringOperand{Value: valTok.Bytes}
		case scanner.TokenBoolean:
			dict.Values[keyTok.Str] = BoolOperand{Value: valTok.Bool}
		case scanner.TokenNull:
			dict.Values[keyTok.Str] = NullOperand{}
		case scanner.TokenArray:
			inner, err := parseOperandArray(sc)
			if err != nil {
				return dict, err
			}
			dict.Values[keyTok.Str] = inner
		case scanner.TokenDict:
			inner, err := parseOperandDict(sc)
			if err != nil {
				return dict, err
			}
			dict.Values[keyTok.Str] = inner
		default:
			return dict, fmt.Errorf("unexpected token %v in dict", valTok.Type)
		}
	}
}

func tokenFloat(tok scanner.Token) float64 {
	if tok.IsInt {
		return float64(tok.Int)
	}
	return tok.Float
}

// SerializeOperations writes operations back out as content stream bytes.
func SerializeOperations(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Operator == "INLINE_IMAGE" {
			writeInlineImage(&buf, op)
			continue
		}
		for _, operand := range op.Operands {
			writeOperand(&buf, operand)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeInlineImage(buf *bytes.Buffer, op Operation) {
	if len(op.Operands) != 1 {
		return
	}
	img, ok := op.Operands[0].(InlineImageOperand)
	if !ok {
		return
	}
	buf.WriteString("BI")
	for k, v := range img.Image.Values {
		buf.WriteString(" /")
		buf.WriteString(k)
		buf.WriteByte(' ')
		writeOperand(buf, v)
	}
	buf.WriteString(" ID\n")
	buf.Write(img.Data)
	if len(img.Data) == 0 || img.Data[len(img.Data)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("EI\n")
}

func writeOperand(buf *bytes.Buffer, operand Operand) {
	switch v := operand.(type) {
	case NumberOperand:
		buf.WriteString(formatNumber(v.Value))
	case NameOperand:
		buf.WriteByte('/')
		buf.WriteString(v.Value)
	case StringOperand:
		writeString(buf, v)
	case BoolOperand:
		buf.WriteString(strconv.FormatBool(v.Value))
	case NullOperand:
		buf.WriteString("null")
	case ArrayOperand:
		buf.WriteByte('[')
		for i, item := range v.Values {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeOperand(buf, item)
		}
		buf.WriteByte(']')
	case DictOperand:
		buf.WriteString("<<")
		for k, item := range v.Values {
			buf.WriteString(" /")
			buf.WriteString(k)
			buf.WriteByte(' ')
			writeOperand(buf, item)
		}
		buf.WriteString(" >>")
	}
}

func writeString(buf *bytes.Buffer, s StringOperand) {
	if s.Hex || !isPrintable(s.Value) {
		buf.WriteByte('<')
		const hexDigits = "0123456789ABCDEF"
		for _, b := range s.Value {
			buf.WriteByte(hexDigits[b>>4])
			buf.WriteByte(hexDigits[b&0x0f])
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, b := range s.Value {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}

func isPrintable(data []byte) bool {
	for _, b := range data {
		if (b < 0x20 || b > 0x7e) && b != '\n' && b != '\r' && b != '\t' {
			return false
		}
	}
	return true
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
