// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package stor

import (
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// AccountRecord data model
// LoginState holds the serialized login-state snapshot; its shape belongs to
// the account package, this store treats it as opaque bytes.
type AccountRecord struct {
	gorm.Model
	UUID         string `json:"uuid" validate:"required,uuid" gorm:"type:varchar(100);uniqueIndex"`
	ProviderID   string `json:"provider_id" validate:"required" gorm:"type:varchar(255);index"`
	ProviderName string `json:"provider_name,omitempty" gorm:"type:varchar(255)"`
	LoansURI     string `json:"loans_uri,omitempty" validate:"omitempty,url" gorm:"type:varchar(255)"`
	LoginState   []byte `json:"login_state,omitempty"`
}

// Validate checks required fields and values
func (a *AccountRecord) Validate() error {

	validate := validator.New()
	return validate.Struct(a)
}

func (s accountStore) ListAll() (*[]AccountRecord, error) {
	accounts := []AccountRecord{}
	// security: limited to 1000 results
	return &accounts, s.db.Limit(1000).Order("id DESC").Find(&accounts).Error
}

func (s accountStore) FindByProvider(providerID string) (*[]AccountRecord, error) {
	accounts := []AccountRecord{}
	return &accounts, s.db.Limit(1000).Where("provider_id= ?", providerID).Order("id DESC").Find(&accounts).Error
}

func (s accountStore) Count() (int64, error) {
	var count int64
	return count, s.db.Model(AccountRecord{}).Count(&count).Error
}

func (s accountStore) Get(uuid string) (*AccountRecord, error) {
	var account AccountRecord
	return &account, s.db.Where("uuid = ?", uuid).First(&account).Error
}

func (s accountStore) Create(newAccount *AccountRecord) error {
	return s.db.Create(newAccount).Error
}

func (s accountStore) Update(changedAccount *AccountRecord) error {
	return s.db.Save(changedAccount).Error
}

func (s accountStore) Delete(deletedAccount *AccountRecord) error {
	return s.db.Delete(deletedAccount).Error
}
