package code

import "net/http"

var (
	Success = NewSuss(1, lang{en: "Success", zhCN: "成功"})

	SuccessCreate    = NewSuss(2, lang{en: "Created", zhCN: "创建成功"})
	SuccessUpdate    = NewSuss(3, lang{en: "Updated", zhCN: "更新成功"})
	SuccessDelete    = NewSuss(4, lang{en: "Deleted", zhCN: "删除成功"})
	SuccessRunQueued = NewSuss(5, lang{en: "Backup started", zhCN: "备份已开始"})

	ErrorServerInternal   = NewError(500, http.StatusInternalServerError, lang{en: "Internal server error", zhCN: "服务器内部错误"})
	ErrorInvalidParams    = NewError(400, http.StatusBadRequest, lang{en: "Invalid parameters", zhCN: "参数错误"})
	ErrorInvalidAuthToken = NewError(401, http.StatusUnauthorized, lang{en: "Invalid auth token", zhCN: "认证令牌无效"})
	ErrorNotFound         = NewError(404, http.StatusNotFound, lang{en: "Resource not found", zhCN: "资源不存在"})
	ErrorTooManyRequests  = NewError(429, http.StatusTooManyRequests, lang{en: "Too many requests", zhCN: "请求过于频繁"})

	ErrorTargetNotFound    = NewError(1001, http.StatusNotFound, lang{en: "Backup target not found", zhCN: "备份目标不存在"})
	ErrorTargetNameExists  = NewError(1002, http.StatusConflict, lang{en: "Backup target name already exists", zhCN: "备份目标名称已存在"})
	ErrorTargetInactive    = NewError(1003, http.StatusConflict, lang{en: "Backup target is inactive", zhCN: "备份目标未启用"})
	ErrorConnectionFailed  = NewError(1004, http.StatusBadGateway, lang{en: "Database connection failed", zhCN: "数据库连接失败"})
	ErrorScheduleNotFound  = NewError(1101, http.StatusNotFound, lang{en: "Schedule not found", zhCN: "计划不存在"})
	ErrorScheduleInvalid   = NewError(1102, http.StatusBadRequest, lang{en: "Schedule is invalid", zhCN: "计划配置无效"})
	ErrorRunNotFound       = NewError(1201, http.StatusNotFound, lang{en: "Backup run not found", zhCN: "备份记录不存在"})
	ErrorRunAlreadyActive  = NewError(1202, http.StatusConflict, lang{en: "A backup is already running for this target", zhCN: "该目标已有备份正在运行"})
	ErrorSchedulerState    = NewError(1301, http.StatusConflict, lang{en: "Scheduler command rejected", zhCN: "调度器命令被拒绝"})
	ErrorImportInvalid     = NewError(1401, http.StatusBadRequest, lang{en: "Import document is invalid", zhCN: "导入文件无效"})
	ErrorSettingSaveFailed = NewError(1501, http.StatusInternalServerError, lang{en: "Failed to save settings", zhCN: "保存设置失败"})
)
