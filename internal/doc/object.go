package doc

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Object is an instance of a class, identified inside its owning document by
// (class name, number). Its property set is always a subset of the class's
// current field set.
type Object struct {
	ClassName  string              `json:"class_name"`
	Number     int                 `json:"number"`
	Properties map[string]Property `json:"properties"`
	// Order keeps property names in class-field order for stable output.
	Order []string `json:"order,omitempty"`
}

func NewObject(className string) *Object {
	return &Object{
		ClassName:  className,
		Properties: make(map[string]Property),
	}
}

// Set coerces the value against the declaring field and stores it.
func (o *Object) Set(c *Class, name string, v any) error {
	f := c.Field(name)
	if f == nil {
		return fmt.Errorf("class %s has no field %s", c.Name, name)
	}
	p, err := f.Coerce(v)
	if err != nil {
		return err
	}
	o.put(name, p)
	return nil
}

// SetText parses the canonical text form against the declaring field.
func (o *Object) SetText(c *Class, name, text string) error {
	f := c.Field(name)
	if f == nil {
		return fmt.Errorf("class %s has no field %s", c.Name, name)
	}
	p, err := f.Parse(text)
	if err != nil {
		return err
	}
	o.put(name, p)
	return nil
}

// PutProperty stores a property as-is, bypassing field coercion. Storage
// backends use it to rebuild objects from persisted rows.
func (o *Object) PutProperty(name string, p Property) {
	o.put(name, p)
}

func (o *Object) put(name string, p Property) {
	if o.Properties == nil {
		o.Properties = make(map[string]Property)
	}
	if _, ok := o.Properties[name]; !ok {
		o.Order = append(o.Order, name)
	}
	o.Properties[name] = p
}

// Get returns the stored property and whether it is set.
func (o *Object) Get(name string) (Property, bool) {
	p, ok := o.Properties[name]
	return p, ok
}

// Prune drops properties no longer declared by the class. Called on load so
// that removing a field never corrupts the remaining ones.
func (o *Object) Prune(c *Class) {
	if c == nil {
		return
	}
	kept := o.Order[:0]
	for _, name := range o.Order {
		if c.Field(name) == nil {
			logrus.Debugf("dropping property %s not declared by class %s", name, c.Name)
			delete(o.Properties, name)
			continue
		}
		kept = append(kept, name)
	}
	o.Order = kept
}

func (o *Object) Copy() *Object {
	cp := &Object{
		ClassName: o.ClassName,
		Number:    o.Number,
		Order:     append([]string(nil), o.Order...),
	}
	cp.Properties = make(map[string]Property, len(o.Properties))
	for k, v := range o.Properties {
		cp.Properties[k] = v.Copy()
	}
	return cp
}

// custom object factories, keyed by the identifier a class declares as its
// CustomClass. Registration is the allow-list: unknown identifiers fall back
// to the default representation.
var (
	customMu        sync.RWMutex
	customFactories = make(map[string]func(className string) *Object)
)

// RegisterCustomClass installs a substitute object constructor under an
// identifier. Typically called from package init of the host application.
func RegisterCustomClass(id string, factory func(className string) *Object) {
	customMu.Lock()
	defer customMu.Unlock()
	customFactories[id] = factory
}

func newCustomObject(id, className string) *Object {
	customMu.RLock()
	factory, ok := customFactories[id]
	customMu.RUnlock()
	if !ok {
		logrus.Warnf("custom class %s is not registered, using default representation", id)
		return nil
	}
	return factory(className)
}
