// Package parity 中的类型同时由生成注入器和反射注入器构建，两条路径的行为应完全一致。
package parity

import (
	"errors"
	"io"
)

//go:generate go run github.com/gocrud/inject/cmd/injectgen -dir .

type Engine struct {
	Power int
}

type Gear struct {
	Teeth int
}

// Journal 按顺序记录注入调用
type Journal struct {
	Calls []string
}

func (j *Journal) record(call string) {
	j.Calls = append(j.Calls, call)
}

// Base 被 Machine 嵌入，它的注入方法和 setter 被提升
type Base struct {
	Journal

	gear *Gear
	log  io.Writer
}

func (b *Base) InjectBase(gear *Gear) {
	b.gear = gear
	b.record("InjectBase")
}

func (b *Base) SetLog(w io.Writer) {
	b.log = w
	b.record("SetLog")
}

// Machine 字段、提升的 setter、自身与提升的注入方法、指令方法都参与注入
type Machine struct {
	Base

	Engine *Engine   `inject:""`
	Log    io.Writer `inject:"setter"`

	label  string
	output io.Writer
}

func NewMachine(label string) *Machine {
	return &Machine{label: label}
}

func (m *Machine) InjectZeta(gear *Gear) {
	m.record("InjectZeta")
}

func (m *Machine) InjectAlpha(engine *Engine) error {
	if engine == nil {
		return errors.New("parity: nil engine")
	}
	m.record("InjectAlpha")
	return nil
}

//di:inject
func (m *Machine) Setup(w io.Writer) {
	m.output = w
	m.record("Setup")
}

// Ambiguous 有两个同样可选的构造函数，无法构造
type Ambiguous struct {
	Gear *Gear `inject:""`
}

func NewAmbiguousFromEngine(engine *Engine) *Ambiguous {
	return &Ambiguous{}
}

func NewAmbiguousFromGear(gear *Gear) *Ambiguous {
	return &Ambiguous{Gear: gear}
}
