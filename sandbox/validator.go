package sandbox

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// SafeMessage is the single detail returned for code without violations.
const SafeMessage = "Code is safe."

// DefaultForbiddenModules 禁止 require 的模块（系统访问、进程派生、解释器内部）
var DefaultForbiddenModules = []string{
	"os",
	"child_process",
	"fs",
	"process",
	"vm",
	"module",
	"worker_threads",
	"cluster",
}

// DefaultForbiddenCalls 禁止按名调用的动态求值原语
var DefaultForbiddenCalls = []string{"eval", "Function"}

// Validator 基于语法树的名称黑名单检查器。
//
// 它不是能力沙箱：别名（const o = require("os") 之后的 o.exit()）、
// 经由已有引用的间接访问以及动态拼接的调用都不会被发现。
type Validator struct {
	forbiddenModules map[string]struct{}
	forbiddenCalls   map[string]struct{}
}

// ValidatorOption 配置 Validator
type ValidatorOption func(*Validator)

// WithForbiddenModules 替换禁止模块集合
func WithForbiddenModules(names ...string) ValidatorOption {
	return func(v *Validator) {
		v.forbiddenModules = toSet(names)
	}
}

// WithForbiddenCalls 替换禁止调用集合
func WithForbiddenCalls(names ...string) ValidatorOption {
	return func(v *Validator) {
		v.forbiddenCalls = toSet(names)
	}
}

// NewValidator 创建检查器
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		forbiddenModules: toSet(DefaultForbiddenModules),
		forbiddenCalls:   toSet(DefaultForbiddenCalls),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type violation struct {
	pos file.Idx
	msg string
}

// Validate parses code and reports whether it is free of denylisted constructs.
// Every violation is returned, ordered by source position.
func (v *Validator) Validate(code string) (bool, []string) {
	prog, err := Parse(code)
	if err != nil {
		return false, []string{fmt.Sprintf("Syntax Error: %v", err)}
	}

	var found []violation
	Walk(prog, func(n ast.Node) {
		found = append(found, v.inspect(n)...)
	})

	if len(found) == 0 {
		return true, []string{SafeMessage}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	details := make([]string, len(found))
	for i, f := range found {
		details[i] = f.msg
	}
	return false, details
}

func (v *Validator) inspect(n ast.Node) []violation {
	switch node := n.(type) {
	case *ast.CallExpression:
		return v.inspectCall(node.Callee, node.ArgumentList, node.Idx0())
	case *ast.NewExpression:
		return v.inspectCall(node.Callee, nil, node.Idx0())
	case *ast.DotExpression:
		if root, ok := node.Left.(*ast.Identifier); ok && v.isForbiddenModule(string(root.Name)) {
			return []violation{{
				pos: node.Idx0(),
				msg: fmt.Sprintf("Potentially unsafe attribute access: %s.%s", root.Name, node.Identifier.Name),
			}}
		}
	case *ast.BracketExpression:
		if root, ok := node.Left.(*ast.Identifier); ok && v.isForbiddenModule(string(root.Name)) {
			member := "[computed]"
			if lit, ok := node.Member.(*ast.StringLiteral); ok {
				member = string(lit.Value)
			}
			return []violation{{
				pos: node.Idx0(),
				msg: fmt.Sprintf("Potentially unsafe attribute access: %s.%s", root.Name, member),
			}}
		}
	}
	return nil
}

func (v *Validator) inspectCall(callee ast.Expression, args []ast.Expression, pos file.Idx) []violation {
	ident, ok := callee.(*ast.Identifier)
	if !ok {
		return nil
	}
	name := string(ident.Name)

	if name == "require" && len(args) > 0 {
		if lit, ok := args[0].(*ast.StringLiteral); ok && v.isForbiddenModule(string(lit.Value)) {
			return []violation{{pos: pos, msg: fmt.Sprintf("Forbidden import: %s", lit.Value)}}
		}
		return nil
	}
	if _, bad := v.forbiddenCalls[name]; bad {
		return []violation{{pos: pos, msg: fmt.Sprintf("Forbidden function call: %s", name)}}
	}
	return nil
}

func (v *Validator) isForbiddenModule(name string) bool {
	_, ok := v.forbiddenModules[name]
	return ok
}

// Parse 解析单元格代码，不加载 source map
func Parse(code string) (*ast.Program, error) {
	return goja.Parse("cell", code, parser.WithDisableSourceMaps)
}

// DeclaredNames 返回顶层 var/let/const/function/class 声明的名称
func DeclaredNames(prog *ast.Program) []string {
	if prog == nil {
		return nil
	}
	var names []string
	addBindings := func(list []*ast.Binding) {
		for _, b := range list {
			if id, ok := b.Target.(*ast.Identifier); ok {
				names = append(names, string(id.Name))
			}
		}
	}
	for _, stmt := range prog.Body {
		switch s := stmt.(type) {
		case *ast.VariableStatement:
			addBindings(s.List)
		case *ast.LexicalDeclaration:
			addBindings(s.List)
		case *ast.FunctionDeclaration:
			if s.Function != nil && s.Function.Name != nil {
				names = append(names, string(s.Function.Name.Name))
			}
		case *ast.ClassDeclaration:
			if s.Class != nil && s.Class.Name != nil {
				names = append(names, string(s.Class.Name.Name))
			}
		}
	}
	return names
}

// =============================================================================
// 🌲 语法树遍历
// =============================================================================

var (
	nodeType = reflect.TypeOf((*ast.Node)(nil)).Elem()
	fileType = reflect.TypeOf((*file.File)(nil))
)

type visitKey struct {
	t    reflect.Type
	addr uintptr
}

// Walk visits every node reachable from root exactly once.
// goja repeats declarations in DeclarationList, hence the visited set.
func Walk(root any, visit func(ast.Node)) {
	seen := make(map[visitKey]struct{})
	walkValue(reflect.ValueOf(root), visit, seen)
}

func walkValue(v reflect.Value, visit func(ast.Node), seen map[visitKey]struct{}) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			walkValue(v.Elem(), visit, seen)
		}
	case reflect.Ptr:
		if v.IsNil() || v.Type() == fileType {
			return
		}
		key := visitKey{t: v.Type(), addr: v.Pointer()}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		if v.Type().Implements(nodeType) && v.CanInterface() {
			visit(v.Interface().(ast.Node))
		}
		walkValue(v.Elem(), visit, seen)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			walkValue(v.Field(i), visit, seen)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkValue(v.Index(i), visit, seen)
		}
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
