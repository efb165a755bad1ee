package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Privilege string

const (
	PrivilegeCreateProduct   Privilege = "create_products"
	PrivilegeListProduct     Privilege = "list_products"
	PrivilegeReadProduct     Privilege = "read_products"
	PrivilegeDownloadProduct Privilege = "download_products"
	PrivilegeConfirmProduct  Privilege = "confirm_product"
	PrivilegeDeleteProduct   Privilege = "delete_products"
	PrivilegeUpdateProduct   Privilege = "update_products"

	PrivilegeCreateCollection Privilege = "create_collection"
	PrivilegeReadCollection   Privilege = "read_collection"
	PrivilegeUpdateCollection Privilege = "update_collection"
	PrivilegeDeleteCollection Privilege = "delete_collection"

	PrivilegeCreateRelationship Privilege = "create_relationship"
	PrivilegeDeleteRelationship Privilege = "delete_relationship"

	PrivilegeCreateUser Privilege = "create_user"
	PrivilegeReadUser   Privilege = "read_user"
	PrivilegeUpdateUser Privilege = "update_user"
	PrivilegeDeleteUser Privilege = "delete_user"
)

// ComplianceInformation holds optional facility-compliance metadata
// attached to a user account.
type ComplianceInformation struct {
	NERSCUsername *string `bson:"nersc_username,omitempty" json:"nersc_username,omitempty"`
}

type User struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Name           string                 `bson:"name" json:"name"`
	HashedPassword string                 `bson:"hashed_password" json:"-"`
	Email          *string                `bson:"email,omitempty" json:"email,omitempty"`
	AvatarURL      *string                `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	APIKey         string                 `bson:"api_key" json:"-"`
	Privileges     []Privilege            `bson:"privileges" json:"privileges"`
	Compliance     *ComplianceInformation `bson:"compliance,omitempty" json:"compliance,omitempty"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `bson:"updated_at" json:"updated_at"`
}

func (u *User) HasPrivilege(p Privilege) bool {
	for _, held := range u.Privileges {
		if held == p {
			return true
		}
	}
	return false
}

// HasAnyPrivilege reports whether the user holds at least one of the
// given privileges.
func (u *User) HasAnyPrivilege(ps ...Privilege) bool {
	for _, p := range ps {
		if u.HasPrivilege(p) {
			return true
		}
	}
	return false
}
