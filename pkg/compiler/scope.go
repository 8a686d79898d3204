package compiler

import "github.com/falcon-lang/falcon/pkg/chunk"

func (p *Parser) beginScope() { p.cur.scopeDepth++ }

// endScope closes the current block scope, popping every local declared
// in it. A captured local is closed over (OP_CLOSE_UPVALUE) rather than
// merely popped, transferring ownership of its value to the heap upvalue
// that referenced it (spec.md §3 "Lifecycles").
func (p *Parser) endScope() {
	p.cur.scopeDepth--
	locals := p.cur.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.cur.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			p.emitOp(chunk.OpCloseUpvalue)
		} else {
			p.emitOp(chunk.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.cur.locals = locals
}

func (p *Parser) addLocal(name string) {
	if len(p.cur.locals) >= 256 {
		p.error("too many local variables in function")
		return
	}
	p.cur.locals = append(p.cur.locals, localVar{name: name, depth: -1})
}

// declareVariable registers the variable currently in p.previous as a new
// local (globals need no declaration step: they live in the VM's global
// table, looked up by name at runtime).
func (p *Parser) declareVariable(name string) {
	if p.cur.scopeDepth == 0 {
		return
	}
	for i := len(p.cur.locals) - 1; i >= 0; i-- {
		l := p.cur.locals[i]
		if l.depth != -1 && l.depth < p.cur.scopeDepth {
			break
		}
		if l.name == name {
			p.error("a variable with this name already exists in this scope")
		}
	}
	p.addLocal(name)
}

// markInitialized marks the most recently declared local as usable,
// distinguishing "var x = x;" (illegal: the initializer may not see its
// own not-yet-initialized binding) from ordinary sequential declarations.
func (p *Parser) markInitialized() {
	if p.cur.scopeDepth == 0 {
		return
	}
	p.cur.locals[len(p.cur.locals)-1].depth = p.cur.scopeDepth
}

// resolveLocal finds name among fs's locals, innermost first, returning
// its stack slot or -1 if not found.
func resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				return -2 // sentinel: referenced in its own initializer
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue recursively resolves name against enclosing funcStates,
// adding an upvalue descriptor to every intervening function so a deeply
// nested closure captures through each level exactly once (spec.md §3
// "Upvalue capture"). Returns the upvalue index in fs, or -1 if name is
// not found in any enclosing scope (making it a global).
func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := resolveLocal(fs.enclosing, name); local >= 0 {
		fs.enclosing.locals[local].isCaptured = true
		return addUpvalue(fs, byte(local), true)
	}
	if up := resolveUpvalue(fs.enclosing, name); up >= 0 {
		return addUpvalue(fs, byte(up), false)
	}
	return -1
}

func addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, upvalueDesc{isLocal: isLocal, index: index})
	return len(fs.upvalues) - 1
}
