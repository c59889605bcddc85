// Package domain defines the persistence models for users, groups, and the
// global bot settings row. These types are mapped with GORM for table
// creation and reads, and implement Entity so the repository layer can save
// them without reflection.
package domain

import "time"

// Entity is a persisted record with a fixed set of columns plus an open set
// of dynamically added setting columns.
//
// The surrogate ID is assigned by the repository on first insert; callers
// never set it. The natural key is the external identity (platform user id,
// group id, alias) used to read the ID back after an insert.
type Entity interface {
	// TableName returns the backing table.
	TableName() string
	// EntityID returns the surrogate key, or nil when the entity was never saved.
	EntityID() *int64
	// AssignID stores the surrogate key. Only repo.Save calls it.
	AssignID(id int64)
	// NaturalKey returns the column and value that identify the row externally.
	NaturalKey() (column string, value any)
	// Columns returns the fixed columns and their current values, keyed by
	// column name. ID is never included.
	Columns() map[string]any
}

// User is a chat platform user known to the bot.
//
// Fields:
//   - ID: surrogate key, nil until the first Save.
//   - UserID: platform (Telegram) user id; natural key.
//   - Name / UserName: display name and @handle (without the marker).
//   - FirstSeen / LastHeard: tracking timestamps maintained by the transport.
//   - Grounded / GroundedBy: grounded users cannot run commands.
//   - IsBotAdmin: grants the bot-admin role.
type User struct {
	ID          *int64    `gorm:"column:ID;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:Name"`
	UserID      int64     `gorm:"column:UserId;index"`
	UserName    string    `gorm:"column:UserName"`
	FirstSeen   time.Time `gorm:"column:FirstSeen"`
	LastHeard   time.Time `gorm:"column:LastHeard"`
	Points      int64     `gorm:"column:Points;not null;default:0"`
	Location    string    `gorm:"column:Location"`
	Debt        int64     `gorm:"column:Debt;not null;default:0"`
	LastState   string    `gorm:"column:LastState"`
	Greeting    string    `gorm:"column:Greeting"`
	Grounded    bool      `gorm:"column:Grounded;not null;default:false"`
	GroundedBy  string    `gorm:"column:GroundedBy"`
	IsBotAdmin  bool      `gorm:"column:IsBotAdmin;not null;default:false"`
	LinkingKey  string    `gorm:"column:LinkingKey"`
	Description string    `gorm:"column:Description"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// EntityID implements Entity.
func (u *User) EntityID() *int64 { return u.ID }

// AssignID implements Entity.
func (u *User) AssignID(id int64) { u.ID = &id }

// NaturalKey implements Entity.
func (u *User) NaturalKey() (string, any) { return "UserId", u.UserID }

// Columns implements Entity.
func (u *User) Columns() map[string]any {
	return map[string]any{
		"Name":        u.Name,
		"UserId":      u.UserID,
		"UserName":    u.UserName,
		"FirstSeen":   u.FirstSeen,
		"LastHeard":   u.LastHeard,
		"Points":      u.Points,
		"Location":    u.Location,
		"Debt":        u.Debt,
		"LastState":   u.LastState,
		"Greeting":    u.Greeting,
		"Grounded":    u.Grounded,
		"GroundedBy":  u.GroundedBy,
		"IsBotAdmin":  u.IsBotAdmin,
		"LinkingKey":  u.LinkingKey,
		"Description": u.Description,
	}
}

// Group is a chat group the bot has seen.
type Group struct {
	ID          *int64 `gorm:"column:ID;primaryKey;autoIncrement"`
	GroupID     int64  `gorm:"column:GroupId;index"`
	Name        string `gorm:"column:Name"`
	UserName    string `gorm:"column:UserName"`
	MemberCount int64  `gorm:"column:MemberCount;not null;default:0"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "chatgroup" }

// EntityID implements Entity.
func (g *Group) EntityID() *int64 { return g.ID }

// AssignID implements Entity.
func (g *Group) AssignID(id int64) { g.ID = &id }

// NaturalKey implements Entity.
func (g *Group) NaturalKey() (string, any) { return "GroupId", g.GroupID }

// Columns implements Entity.
func (g *Group) Columns() map[string]any {
	return map[string]any{
		"GroupId":     g.GroupID,
		"Name":        g.Name,
		"UserName":    g.UserName,
		"MemberCount": g.MemberCount,
	}
}

// Setting is the global configuration row of one bot instance, selected by
// alias. Additional global settings are added as dynamic columns.
type Setting struct {
	ID                         *int64 `gorm:"column:ID;primaryKey;autoIncrement"`
	Alias                      string `gorm:"column:Alias;index"`
	TelegramBotAPIKey          string `gorm:"column:TelegramBotAPIKey"`
	TelegramDefaultAdminUserID int64  `gorm:"column:TelegramDefaultAdminUserId"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }

// EntityID implements Entity.
func (s *Setting) EntityID() *int64 { return s.ID }

// AssignID implements Entity.
func (s *Setting) AssignID(id int64) { s.ID = &id }

// NaturalKey implements Entity.
func (s *Setting) NaturalKey() (string, any) { return "Alias", s.Alias }

// Columns implements Entity.
func (s *Setting) Columns() map[string]any {
	return map[string]any{
		"Alias":                      s.Alias,
		"TelegramBotAPIKey":          s.TelegramBotAPIKey,
		"TelegramDefaultAdminUserId": s.TelegramDefaultAdminUserID,
	}
}

// Compile-time interface checks.
var (
	_ Entity = (*User)(nil)
	_ Entity = (*Group)(nil)
	_ Entity = (*Setting)(nil)
)
