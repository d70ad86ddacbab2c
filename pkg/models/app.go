package models

import "github.com/google/uuid"

var appNamespace = uuid.MustParse("6b1e2f46-6a43-4c6e-9a3f-7c1f0e2d5a10")

// AppID scopes every flow rule and meter installed by one application. The
// UUID is derived from the name so a restarted process owns the same entries.
type AppID struct {
	Name string
	UUID uuid.UUID
}

func NewAppID(name string) AppID {
	return AppID{
		Name: name,
		UUID: uuid.NewSHA1(appNamespace, []byte(name)),
	}
}

// Cookie is the opaque tag written alongside every table entry.
func (a AppID) Cookie() []byte {
	b := a.UUID
	return b[:]
}

func (a AppID) IsZero() bool {
	return a.UUID == uuid.Nil
}

func (a AppID) String() string {
	return a.Name
}
