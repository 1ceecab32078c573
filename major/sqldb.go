package major

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"display-push-service/conf"
	"display-push-service/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db    *gorm.DB
	sqlDB *sql.DB
)

func InitSqlConfig() {
	gdb, err := Open(conf.RdsDriver, conf.RdsDsn)
	if err != nil {
		panic(fmt.Errorf("DB init error %s", err.Error()))
	}
	sqlDB, err = gdb.DB()
	if err != nil {
		panic(fmt.Errorf("sqlDB error %s", err.Error()))
	}
	sqlDB.SetMaxOpenConns(conf.RdsMaxOpenConns)
	sqlDB.SetMaxIdleConns(conf.RdsMaxIdleConns)
	if err := Migrate(gdb); err != nil {
		panic(fmt.Errorf("DB migrate error %s", err.Error()))
	}
	db = gdb
}

// Open 按驱动打开数据库，mysql 为生产，sqlite 用于本地和测试
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported rds driver %q", driver)
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(log.Writer(), "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.Device{}, &models.Message{}, &models.MessageDelivery{})
}

func GetSqlDB() *gorm.DB {
	if db != nil {
		return db
	}
	return nil
}

func CloseSqlDB() error {
	if sqlDB != nil {
		return sqlDB.Close()
	}
	return nil
}
