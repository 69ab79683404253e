package entity

type Room struct {
	Base
	Name     string `db:"name"`
	Capacity int    `db:"capacity"`
	Location string `db:"location"`
	// Timezone is an IANA zone name; empty means the application default.
	Timezone string `db:"timezone"`
}
