package auth

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smesmis/pos-checkout/pkg/enums"
	"github.com/smesmis/pos-checkout/pkg/types"
)

// AccessTokenClaims mirrors the token issued by the MIS backend login endpoint.
type AccessTokenClaims struct {
	UserID   types.ExternalID `json:"id,omitempty"`
	Username string           `json:"username,omitempty"`
	Roles    roleList         `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated operator behind a request.
type Identity struct {
	UserID   string
	Username string
	Roles    []enums.MemberRole
	Token    string
}

// HasRole reports whether the identity carries the role.
func (i Identity) HasRole(role enums.MemberRole) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Can reports whether any of the identity's roles grants the permission.
func (i Identity) Can(p enums.Permission) bool {
	return enums.Grants(i.Roles, p)
}

// roleList accepts ["ROLE_ADMIN"] as well as [{"name":"ADMIN"}].
type roleList []string

func (r *roleList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var single string
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return err
		}
		*r = roleList{single}
		return nil
	}
	out := make(roleList, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, name)
			continue
		}
		var obj struct {
			Name      string `json:"name"`
			Authority string `json:"authority"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Name != "" {
			out = append(out, obj.Name)
		} else if obj.Authority != "" {
			out = append(out, obj.Authority)
		}
	}
	*r = out
	return nil
}
