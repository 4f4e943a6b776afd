// Package optimization turns user-defined structures into the variables and parameters of an
// optimization problem and back.
//
// A structure takes part by implementing Object. Its Fields method lists the fields the package
// may touch, each built with a constructor that fixes the field's role:
//
//	type Knot struct {
//		State optimization.Storage
//		Force optimization.Storage
//		Label string
//	}
//
//	func (k *Knot) Fields() []optimization.Field {
//		return []optimization.Field{
//			optimization.Variable("state", &k.State),
//			optimization.Variable("force", &k.Force),
//			optimization.Plain("label"),
//		}
//	}
//
// Generate copies a template structure and replaces every storage value with a symbol of the same
// shape. The generated structure is used to write costs and constraints, the same structure type
// filled with numbers is an initial guess, and after Solve the solution comes back in it too.
package optimization

import (
	"fmt"
)

// Object is a structure made of optimization fields. Fields must return descriptors that point
// into the receiver, so that copies of the structure describe their own fields.
type Object interface {
	Fields() []Field
}

// ObjectPtr is a pointer to a structure implementing Object.
type ObjectPtr[T any] interface {
	*T
	Object
}

// Role is the role of a field.
type Role int

// The roles a field can have.
const (
	RolePlainData Role = iota
	RoleVariable
	RoleParameter
	RoleNested
	RoleListOfNested
)

func (r Role) String() string {
	switch r {
	case RolePlainData:
		return "plain_data"
	case RoleVariable:
		return "variable"
	case RoleParameter:
		return "parameter"
	case RoleNested:
		return "nested"
	case RoleListOfNested:
		return "list_of_nested"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Field describes one field of an Object.
type Field struct {
	name    string
	role    Role
	storage *Storage

	object  func() Object
	objects func() []Object
	// detach points a nested or listed child at a fresh shallow copy.
	detach func()

	invalid string
}

// Name returns the field name.
func (f Field) Name() string {
	return f.name
}

// Role returns the field role.
func (f Field) Role() Role {
	return f.role
}

// Variable declares a decision variable field.
func Variable(name string, s *Storage) Field {
	return StorageField(name, RoleVariable, s)
}

// Parameter declares a parameter field.
func Parameter(name string, s *Storage) Field {
	return StorageField(name, RoleParameter, s)
}

// StorageField declares a storage field with an explicit role.
func StorageField(name string, role Role, s *Storage) Field {
	f := Field{name: name, role: role, storage: s}
	switch {
	case s == nil:
		f.invalid = "nil storage"
	case role == RoleNested || role == RoleListOfNested:
		f.invalid = fmt.Sprintf("storage field cannot have role %v", role)
	}
	return f
}

// Plain declares a field that generation and binding leave alone. Plain fields are copied along
// with their structure.
func Plain(name string) Field {
	return Field{name: name, role: RolePlainData}
}

// Nested declares a field holding a pointer to another Object. A nil pointer is left nil.
func Nested[T any, PT ObjectPtr[T]](name string, p *PT) Field {
	f := Field{name: name, role: RoleNested}
	if p == nil {
		f.invalid = "nil pointer to nested field"
		return f
	}
	f.object = func() Object {
		if *p == nil {
			return nil
		}
		return *p
	}
	f.detach = func() {
		if *p == nil {
			return
		}
		c := **p
		*p = PT(&c)
	}
	return f
}

// Embedded declares a nested Object stored by value in its parent. obj must point into the
// receiver of Fields, e.g. Embedded("settings", &s.Settings).
func Embedded(name string, obj Object) Field {
	f := Field{name: name, role: RoleNested}
	if obj == nil {
		f.invalid = "nil embedded object"
		return f
	}
	f.object = func() Object { return obj }
	return f
}

// List declares a field holding a slice of pointers to Objects.
func List[T any, PT ObjectPtr[T]](name string, p *[]PT) Field {
	f := Field{name: name, role: RoleListOfNested}
	if p == nil {
		f.invalid = "nil pointer to list field"
		return f
	}
	f.objects = func() []Object {
		out := make([]Object, len(*p))
		for i, e := range *p {
			if e != nil {
				out[i] = e
			}
		}
		return out
	}
	f.detach = func() {
		if *p == nil {
			return
		}
		s := make([]PT, len(*p))
		for i, e := range *p {
			if e == nil {
				continue
			}
			c := *e
			s[i] = PT(&c)
		}
		*p = s
	}
	return f
}

// Objects converts a slice of structure pointers to Objects, keeping nil elements nil.
func Objects[T any, PT ObjectPtr[T]](items []PT) []Object {
	out := make([]Object, len(items))
	for i, item := range items {
		if item != nil {
			out[i] = item
		}
	}
	return out
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func validateFields(path string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.name == "" {
			return &ConfigurationError{Path: path, Reason: "field without a name"}
		}
		p := joinPath(path, f.name)
		if seen[f.name] {
			return &ConfigurationError{Path: p, Reason: "declared more than once"}
		}
		seen[f.name] = true
		if f.invalid != "" {
			return &ConfigurationError{Path: p, Reason: f.invalid}
		}
		if f.storage == nil && f.role != RolePlainData && f.role != RoleNested && f.role != RoleListOfNested {
			return &ConfigurationError{Path: p, Reason: fmt.Sprintf("role %v without storage", f.role)}
		}
	}
	return nil
}

// copyTree turns obj, a shallow copy, into a deep copy by detaching every nested and listed
// child, and calls leaf on each storage field of the copy.
func copyTree(path string, obj Object, leaf func(path string, f Field) error) error {
	fields := obj.Fields()
	if err := validateFields(path, fields); err != nil {
		return err
	}
	for _, f := range fields {
		p := joinPath(path, f.name)
		switch {
		case f.storage != nil:
			if err := leaf(p, f); err != nil {
				return err
			}
		case f.role == RoleNested:
			if f.detach != nil {
				f.detach()
			}
			child := f.object()
			if child == nil {
				continue
			}
			if err := copyTree(p, child, leaf); err != nil {
				return err
			}
		case f.role == RoleListOfNested:
			f.detach()
			for i, child := range f.objects() {
				if child == nil {
					return &ConfigurationError{Path: indexPath(p, i), Reason: "nil list element"}
				}
				if err := copyTree(indexPath(p, i), child, leaf); err != nil {
					return err
				}
			}
		default:
		}
	}
	return nil
}
