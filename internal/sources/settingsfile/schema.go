package settingsfile

// File is the top-level structure of a settings file:
//
//	feishu:
//	  app_id: cli_xxx
//	  app_secret: ${FEISHU_APP_SECRET}
//	  base_id: bascnxxxxxxxx
//	  table_id: tblxxxx
//	fields:
//	  notes: 备注
//	default_tags: [go, reading]
//	max_retries: 3
type File struct {
	Feishu      FeishuSection     `yaml:"feishu"`
	Fields      map[string]string `yaml:"fields,omitempty"`
	DefaultTags []string          `yaml:"default_tags,omitempty"`
	MaxRetries  int               `yaml:"max_retries,omitempty"`
}

// FeishuSection holds credentials and the target table.
type FeishuSection struct {
	AppID             string `yaml:"app_id"`
	AppSecret         string `yaml:"app_secret"`
	TenantAccessToken string `yaml:"tenant_access_token,omitempty"`
	BaseID            string `yaml:"base_id"`
	TableID           string `yaml:"table_id"`
}
