package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Org{},
		&Profile{},
		&Client{},
		&Project{},
		&Invoice{},
		&InvoiceLineItem{},
		&Payment{},
		&Note{},
	}
}
