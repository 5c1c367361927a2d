package domain

// Credentials are the login form fields for the catalog.
type Credentials struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	CheckCode string `yaml:"checkcode"`
}

func (c *Credentials) Empty() bool {
	return c == nil || (c.Username == "" && c.Password == "")
}
