package models

// Document is the whole dataset. It is loaded and saved as one unit.
type Document struct {
	Users    []User    `json:"users" bson:"users"`
	Products []Product `json:"products" bson:"products"`
	Orders   []Order   `json:"orders" bson:"orders"`
}

func NewDocument() *Document {
	return &Document{
		Users:    []User{},
		Products: []Product{},
		Orders:   []Order{},
	}
}

// Normalize replaces nil collections with empty ones so the document always
// serializes as three arrays.
func (d *Document) Normalize() *Document {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Products == nil {
		d.Products = []Product{}
	}
	if d.Orders == nil {
		d.Orders = []Order{}
	}
	return d
}

// Clone returns a deep copy; order line items are copied so snapshots never
// share backing arrays.
func (d *Document) Clone() *Document {
	out := &Document{
		Users:    make([]User, len(d.Users)),
		Products: make([]Product, len(d.Products)),
		Orders:   make([]Order, len(d.Orders)),
	}
	copy(out.Users, d.Users)
	copy(out.Products, d.Products)
	for i, o := range d.Orders {
		o.Items = append([]OrderItem(nil), o.Items...)
		out.Orders[i] = o
	}
	return out
}

func (d *Document) FindUser(id string) (*User, int) {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i], i
		}
	}
	return nil, -1
}

func (d *Document) FindUserByUsername(username string) *User {
	for i := range d.Users {
		if d.Users[i].Username == username {
			return &d.Users[i]
		}
	}
	return nil
}

// EmailTaken reports whether a user other than exceptID owns email.
func (d *Document) EmailTaken(email, exceptID string) bool {
	for _, u := range d.Users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (d *Document) FindProduct(id string) (*Product, int) {
	for i := range d.Products {
		if d.Products[i].ID == id {
			return &d.Products[i], i
		}
	}
	return nil, -1
}

func (d *Document) FindOrder(id string) (*Order, int) {
	for i := range d.Orders {
		if d.Orders[i].ID == id {
			return &d.Orders[i], i
		}
	}
	return nil, -1
}

func (d *Document) OrdersByUser(userID string) []Order {
	out := []Order{}
	for _, o := range d.Orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out
}
