package consts

const (
	COMP_CTRL_BULK            = "bulk_ctrl"
	COMP_CTRL_META            = "meta_ctrl"
	COMP_SVC_BULK             = "bulk_service"
	COMP_SVC_RUN_PROGRESS     = "run_progress_mgr"
	COMP_DAO_BULK_RUN         = "bulk_run_dao"
	COMP_DAO_VALIDATION_CACHE = "validation_cache"
)
