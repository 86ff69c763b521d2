package testsupport

import (
	"fmt"

	"github.com/google/uuid"
)

// User is the model shared by the backend test suites. It carries tags for
// every codec the adapters use.
type User struct {
	ID    string   `json:"id" bson:"_id" msgpack:"id"`
	Name  string   `json:"name" bson:"name" msgpack:"name"`
	Email string   `json:"email,omitempty" bson:"email,omitempty" msgpack:"email,omitempty"`
	Age   int      `json:"age" bson:"age" msgpack:"age"`
	Tags  []string `json:"tags,omitempty" bson:"tags,omitempty" msgpack:"tags,omitempty"`
}

func (u User) GetID() string { return u.ID }

// NewUser returns a user with a random id.
func NewUser(name string) User {
	return User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: fmt.Sprintf("%s@example.com", name),
		Age:   30,
	}
}

// Users returns n users named name, each with a random id.
func Users(n int, name string) []User {
	users := make([]User, 0, n)
	for i := 0; i < n; i++ {
		u := NewUser(name)
		u.Age = 20 + i
		users = append(users, u)
	}
	return users
}
