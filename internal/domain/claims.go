package domain

// Placeholders embedded in session claims when the profile field is unset.
const (
	DefaultBio        = "Hey there! I am using BlogSpark."
	DefaultProfileImg = "/images/default-avatar.png"
	DefaultCoverImg   = "/images/default-cover.jpg"
)

// Claims is the identity bundle carried by a session token. It is the
// display source of truth for the lifetime of the token, so it is re-minted
// whenever one of these fields changes.
type Claims struct {
	UserID      string   `json:"id"`
	Email       string   `json:"email"`
	Firstname   string   `json:"firstname"`
	Lastname    string   `json:"lastname"`
	Gender      Gender   `json:"gender"`
	Contact     string   `json:"contact"`
	Bio         string   `json:"bio"`
	ProfileImg  string   `json:"profileImg"`
	CoverImg    string   `json:"coverImg"`
	IsVerified  bool     `json:"isVerified"`
	HasPassword bool     `json:"hasPassword"`
	Providers   []string `json:"oauthProvider"`
}

func ClaimsFor(u UserWithPassword) Claims {
	c := Claims{
		UserID:      u.ID,
		Email:       u.Email,
		Firstname:   u.Firstname,
		Lastname:    u.Lastname,
		Gender:      u.Gender,
		Contact:     u.Contact,
		Bio:         u.Bio,
		ProfileImg:  u.ProfileImg,
		CoverImg:    u.CoverImg,
		IsVerified:  u.IsVerified,
		HasPassword: u.HasPassword(),
		Providers:   append([]string{}, u.Providers...),
	}
	if c.Bio == "" {
		c.Bio = DefaultBio
	}
	if c.ProfileImg == "" {
		c.ProfileImg = DefaultProfileImg
	}
	if c.CoverImg == "" {
		c.CoverImg = DefaultCoverImg
	}
	return c
}

func (c Claims) FullName() string {
	switch {
	case c.Firstname == "":
		return c.Lastname
	case c.Lastname == "":
		return c.Firstname
	}
	return c.Firstname + " " + c.Lastname
}
