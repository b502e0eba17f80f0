package main

import (
	"fmt"
	"reflect"

	"github.com/gocrud/inject/di"
)

//go:generate go run github.com/gocrud/inject/cmd/injectgen -dir .

type Engine struct {
	Power int
}

type Gear struct {
	Teeth int
}

// Widget 字段注入 Gear，方法注入标签，构造函数注入 Engine
type Widget struct {
	Gear *Gear `inject:""`

	engine *Engine
	label  string
}

func NewWidget(engine *Engine) *Widget {
	return &Widget{engine: engine}
}

func (w *Widget) InjectLabel(label string) {
	w.label = label
}

func (w *Widget) Dispose() {
	fmt.Printf("widget %q disposed\n", w.label)
}

func (w *Widget) String() string {
	return fmt.Sprintf("%s: engine=%d gear=%d", w.label, w.engine.Power, w.Gear.Teeth)
}

// registry 按类型返回预先准备好的实例
type registry map[reflect.Type]any

func (r registry) resolve(typ reflect.Type) (any, error) {
	if v, ok := r[typ]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no service for %s", typ)
}

func main() {
	services := registry{
		reflect.TypeFor[*Engine](): &Engine{Power: 300},
		reflect.TypeFor[*Gear]():   &Gear{Teeth: 12},
		reflect.TypeFor[string]():  "default",
	}

	scope := di.NewScope(di.ResolverFunc(services.resolve))
	defer scope.Dispose()

	w, err := di.Instantiate[Widget](scope, di.Named("label", "front"))
	if err != nil {
		panic(err)
	}
	fmt.Println(w)

	strategy, _ := di.DefaultCache().Strategy(di.KeyOf[Widget]())
	fmt.Println("strategy:", strategy)
}
