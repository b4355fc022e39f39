package shared

import (
	"github.com/google/uuid"
)

func AppInfo() Info {
	return appInfo
}

func SetAppName(name string) {
	appInfo.AppName = name
}

func GetAppName() string {
	return appInfo.AppName
}

// RuntimeID identifies one run of the application in logs.
func RuntimeID() string {
	return AppInfo().AppName + "." + uuid.NewString()
}
