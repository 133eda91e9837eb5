package address

type Address struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

type Input struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

// listResponse is the envelope of every address endpoint. Mutations answer
// with the whole address book.
type listResponse struct {
	Success   bool      `json:"success"`
	Addresses []Address `json:"addresses"`
}

// SelectDefault picks the address to preselect: the first marked default,
// else the first one, else nil.
func SelectDefault(addrs []Address) *Address {
	for i := range addrs {
		if addrs[i].IsDefault {
			return &addrs[i]
		}
	}
	if len(addrs) > 0 {
		return &addrs[0]
	}
	return nil
}

func Find(addrs []Address, id string) *Address {
	for i := range addrs {
		if addrs[i].ID == id {
			return &addrs[i]
		}
	}
	return nil
}
