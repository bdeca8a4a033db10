package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Document{},
		&Class{},
		&Object{},
		&StringProperty{},
		&LargeStringProperty{},
		&IntegerProperty{},
		&LongProperty{},
		&FloatProperty{},
		&DoubleProperty{},
		&DateProperty{},
		&ListProperty{},
		&DBListProperty{},
		&Link{},
		&Lock{},
		&Archive{},
		&Attachment{},
		&AttachmentContent{},
		&AttachmentArchive{},
	)
}
