package compiler

// beginScope/endScope bracket a lexical block. endScope closes captured
// locals with OP_CLOSE_UPVALUE and pops the rest, per spec.md §4.3
// "Locals and upvalues".
func (c *Compiler) beginScope() { c.frame.scopeDepth++ }

func (c *Compiler) endScope() {
	f := c.frame
	f.scopeDepth--
	for len(f.locals) > 0 && f.locals[len(f.locals)-1].Depth > f.scopeDepth {
		last := f.locals[len(f.locals)-1]
		if last.IsCaptured {
			c.emitByte(byte(opCloseUpvalue))
		} else {
			c.emitByte(byte(opPop))
		}
		f.locals = f.locals[:len(f.locals)-1]
	}
}

// declareLocal adds name as a not-yet-initialized local of the current
// frame, rejecting redeclaration within the same scope depth.
func (c *Compiler) declareLocal(name string) {
	if c.frame.scopeDepth == 0 {
		return // globals are looked up by name, not declared as locals
	}
	f := c.frame
	for i := len(f.locals) - 1; i >= 0; i-- {
		l := f.locals[i]
		if l.Depth != -1 && l.Depth < f.scopeDepth {
			break
		}
		if l.Name == name {
			c.error("variable with this name already declared in this scope")
			return
		}
	}
	f.locals = append(f.locals, Local{Name: name, Depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.frame.scopeDepth == 0 {
		return
	}
	c.frame.locals[len(c.frame.locals)-1].Depth = c.frame.scopeDepth
}

// resolveLocal scans f's own locals table, returning -1 if name isn't a
// local of f. A local with Depth == -1 is declared-but-uninitialized; a
// reference to it is a compile error (spec.md §4.3).
func (c *Compiler) resolveLocal(f *Frame, name string) int {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].Name == name {
			if f.locals[i].Depth == -1 {
				c.error("cannot read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue asks enclosing frames transitively for name, wiring a
// chain of upvalue entries through every intermediate frame (spec.md
// §4.3).
func (c *Compiler) resolveUpvalue(f *Frame, name string) int {
	if f.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(f.enclosing, name); local != -1 {
		f.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(f, local, true)
	}
	if up := c.resolveUpvalue(f.enclosing, name); up != -1 {
		return c.addUpvalue(f, up, false)
	}
	return -1
}

func (c *Compiler) addUpvalue(f *Frame, index int, isLocal bool) int {
	for i, uv := range f.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	f.upvalues = append(f.upvalues, UpvalueRef{IsLocal: isLocal, Index: index})
	return len(f.upvalues) - 1
}
