package models

// Identity вызывающий, установленный по access-токену.
type Identity struct {
	UserUID  string
	Username string
	Role     Role
}
