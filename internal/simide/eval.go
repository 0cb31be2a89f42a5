package simide

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The console understands a small expression language, enough for the
// commands and scripts the terminal scenarios type:
//
//	let x = await remix.call('fileManager', 'readFile', 'contracts/3_Ballot.sol')
//	console.log('result - ', x)
//	sleep(500)
//	console.log(1 + 2 * 3)
//
// Statements are separated by newlines or semicolons. Values are integers,
// strings, arrays and undefined (nil).

type value any

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokNumber
	tokString
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n' || c == ';':
			toks = append(toks, token{tokNewline, string(c), i})
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case isDigit(c):
			j := i
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(src) && (isIdentStart(src[j]) || isDigit(src[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		case c == '\'' || c == '"' || c == '`':
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", i, err)
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		case strings.IndexByte("()[],.+-*/%=", c) >= 0:
			toks = append(toks, token{tokPunct, string(c), i})
			i++
		default:
			return nil, fmt.Errorf("offset %d: unexpected character %q", i, c)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func lexString(src string) (string, int, error) {
	quote := src[0]
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(src[i])
			}
		case c == '\n' && quote != '`':
			return "", 0, errors.New("unterminated string")
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// AST

type expr interface {
	eval(in *interp) (value, error)
}

type stmt interface {
	exec(in *interp) (value, error)
}

type (
	numLit struct{ v int64 }
	strLit struct{ v string }
	arrLit struct{ elems []expr }
	ref    struct{ name string }
	neg    struct{ x expr }
	binary struct {
		op   string
		l, r expr
	}
	call struct {
		fn   string
		args []expr
	}
	letStmt struct {
		name string
		x    expr
	}
	exprStmt struct{ x expr }
)

type parser struct {
	toks []token
	pos  int
}

// parse compiles console input. A syntax error means the console rejects
// the input outright.
func parse(src string) ([]stmt, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	var prog []stmt
	for {
		p.skipNewlines()
		if p.peek().kind == tokEOF {
			break
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog = append(prog, st)
		if t := p.peek(); t.kind != tokNewline && t.kind != tokEOF {
			return nil, p.unexpected(t)
		}
	}
	if len(prog) == 0 {
		return nil, errors.New("empty input")
	}
	return prog, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) expect(s string) error {
	if !p.isPunct(s) {
		return fmt.Errorf("expected %q: %w", s, p.unexpected(p.peek()))
	}
	p.next()
	return nil
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.next()
	}
}

func (p *parser) unexpected(t token) error {
	if t.kind == tokEOF {
		return errors.New("unexpected end of input")
	}
	return fmt.Errorf("offset %d: unexpected %q", t.pos, t.text)
}

func (p *parser) statement() (stmt, error) {
	if t := p.peek(); t.kind == tokIdent && (t.text == "let" || t.text == "var" || t.text == "const") {
		p.next()
		name := p.next()
		if name.kind != tokIdent {
			return nil, p.unexpected(name)
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		return letStmt{name: name.text, x: x}, nil
	}
	x, err := p.expr()
	if err != nil {
		return nil, err
	}
	return exprStmt{x: x}, nil
}

func (p *parser) expr() (expr, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.next().text
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) term() (expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		op := p.next().text
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) unary() (expr, error) {
	if p.isPunct("-") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return neg{x: x}, nil
	}
	// Calls complete synchronously, so await is a no-op.
	if t := p.peek(); t.kind == tokIdent && t.text == "await" {
		p.next()
		return p.unary()
	}
	return p.primary()
}

func (p *parser) primary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", t.pos, err)
		}
		return numLit{v: n}, nil
	case tokString:
		return strLit{v: t.text}, nil
	case tokPunct:
		switch t.text {
		case "(":
			p.skipNewlines()
			x, err := p.expr()
			if err != nil {
				return nil, err
			}
			p.skipNewlines()
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			elems, err := p.list("]")
			if err != nil {
				return nil, err
			}
			return arrLit{elems: elems}, nil
		}
	case tokIdent:
		name := t.text
		for p.isPunct(".") {
			p.next()
			id := p.next()
			if id.kind != tokIdent {
				return nil, p.unexpected(id)
			}
			name += "." + id.text
		}
		if p.isPunct("(") {
			p.next()
			args, err := p.list(")")
			if err != nil {
				return nil, err
			}
			return call{fn: name, args: args}, nil
		}
		return ref{name: name}, nil
	}
	return nil, p.unexpected(t)
}

// list parses comma separated expressions up to and including closer.
func (p *parser) list(closer string) ([]expr, error) {
	var out []expr
	p.skipNewlines()
	if p.isPunct(closer) {
		p.next()
		return out, nil
	}
	for {
		p.skipNewlines()
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, x)
		p.skipNewlines()
		if p.isPunct(",") {
			p.next()
			continue
		}
		if err := p.expect(closer); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Evaluation

type interp struct {
	ide  *IDE
	ctx  context.Context
	gen  uint64
	vars map[string]value
}

func newInterp(ctx context.Context, ide *IDE, gen uint64) *interp {
	return &interp{ide: ide, ctx: ctx, gen: gen, vars: map[string]value{}}
}

// run executes prog and returns the value of its last statement.
func (in *interp) run(prog []stmt) (value, error) {
	var last value
	for _, st := range prog {
		if err := in.ctx.Err(); err != nil {
			return nil, err
		}
		v, err := st.exec(in)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (s letStmt) exec(in *interp) (value, error) {
	v, err := s.x.eval(in)
	if err != nil {
		return nil, err
	}
	in.vars[s.name] = v
	return nil, nil
}

func (s exprStmt) exec(in *interp) (value, error) { return s.x.eval(in) }

func (n numLit) eval(*interp) (value, error) { return n.v, nil }

func (s strLit) eval(*interp) (value, error) { return s.v, nil }

func (a arrLit) eval(in *interp) (value, error) {
	out := make([]value, 0, len(a.elems))
	for _, e := range a.elems {
		v, err := e.eval(in)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r ref) eval(in *interp) (value, error) {
	if v, ok := in.vars[r.name]; ok {
		return v, nil
	}
	if r.name == "undefined" {
		return nil, nil
	}
	return nil, fmt.Errorf("ReferenceError: %s is not defined", r.name)
}

func (n neg) eval(in *interp) (value, error) {
	v, err := n.x.eval(in)
	if err != nil {
		return nil, err
	}
	i, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("TypeError: cannot negate %s", formatValue(v))
	}
	return -i, nil
}

func (b binary) eval(in *interp) (value, error) {
	l, err := b.l.eval(in)
	if err != nil {
		return nil, err
	}
	r, err := b.r.eval(in)
	if err != nil {
		return nil, err
	}

	li, lok := l.(int64)
	ri, rok := r.(int64)
	if b.op == "+" && !(lok && rok) {
		return formatValue(l) + formatValue(r), nil
	}
	if !lok || !rok {
		return nil, fmt.Errorf("TypeError: %s %s %s", formatValue(l), b.op, formatValue(r))
	}

	switch b.op {
	case "+":
		return li + ri, nil
	case "-":
		return li - ri, nil
	case "*":
		return li * ri, nil
	case "/", "%":
		if ri == 0 {
			return nil, errors.New("RangeError: division by zero")
		}
		if b.op == "/" {
			return li / ri, nil
		}
		return li % ri, nil
	}
	return nil, fmt.Errorf("unknown operator %q", b.op)
}

func (c call) eval(in *interp) (value, error) {
	args := make([]value, 0, len(c.args))
	for _, a := range c.args {
		v, err := a.eval(in)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return in.call(c.fn, args)
}

// call dispatches the console's built-in functions.
func (in *interp) call(fn string, args []value) (value, error) {
	switch fn {
	case "console.log", "console.info", "console.warn":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = formatValue(a)
		}
		in.ide.emit(in.gen, strings.Join(parts, " "))
		return nil, nil

	case "sleep":
		ms, err := intArg(fn, args, 0)
		if err != nil {
			return nil, err
		}
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		select {
		case <-in.ctx.Done():
			return nil, in.ctx.Err()
		case <-t.C:
			return nil, nil
		}

	case "remix.help":
		for _, line := range helpLines {
			in.ide.emit(in.gen, line)
		}
		return nil, nil

	case "remix.execute":
		path, err := stringArg(fn, args, 0)
		if err != nil {
			return nil, err
		}
		return nil, in.ide.execute(path, in.gen)

	case "remix.exeCurrent":
		path := in.ide.activeFile()
		if path == "" {
			return nil, errors.New("no file is open in the editor")
		}
		return nil, in.ide.execute(path, in.gen)

	case "remix.loadgist", "remix.loadurl":
		return nil, fmt.Errorf("%s is not available offline", fn)

	case "remix.call":
		plugin, err := stringArg(fn, args, 0)
		if err != nil {
			return nil, err
		}
		method, err := stringArg(fn, args, 1)
		if err != nil {
			return nil, err
		}
		return in.ide.pluginCall(plugin, method, args[2:])

	case "web3.eth.getAccounts":
		accounts := in.ide.accounts()
		out := make([]value, len(accounts))
		for i, a := range accounts {
			out[i] = a
		}
		return out, nil
	}
	return nil, fmt.Errorf("TypeError: %s is not a function", fn)
}

func stringArg(fn string, args []value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d", fn, i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be a string", fn, i+1)
	}
	return s, nil
}

func intArg(fn string, args []value, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: missing argument %d", fn, i+1)
	}
	n, ok := args[i].(int64)
	if !ok {
		return 0, fmt.Errorf("%s: argument %d must be a number", fn, i+1)
	}
	return n, nil
}

// formatValue renders a value the way the console journal prints it.
func formatValue(v value) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case []value:
		if len(x) == 0 {
			return "[]"
		}
		parts := make([]string, len(x))
		for i, e := range x {
			if s, ok := e.(string); ok {
				parts[i] = `"` + s + `"`
			} else {
				parts[i] = formatValue(e)
			}
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	default:
		return fmt.Sprint(x)
	}
}
