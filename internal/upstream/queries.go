package upstream

const itemStub = `id name shortName`

const objectiveFields = `
	id type description optional
	maps { id name normalizedName }
	... on TaskObjectiveItem { item { ` + itemStub + ` } items { ` + itemStub + ` } count foundInRaid zones { id map { id } position { x y z } } }
	... on TaskObjectiveQuestItem { questItem { ` + itemStub + ` } count zones { id map { id } position { x y z } } }
	... on TaskObjectiveMark { markerItem { ` + itemStub + ` } zones { id map { id } position { x y z } } }
	... on TaskObjectiveUseItem { useAny { ` + itemStub + ` } count zones { id map { id } position { x y z } } }
	... on TaskObjectiveBasic { zones { id map { id } position { x y z } } }
	... on TaskObjectivePlayerLevel { playerLevel }
	... on TaskObjectiveTaskStatus { task { id name } status }
`

const rewardFields = `
	items { item { ` + itemStub + ` } count }
	traderStanding { trader { id name normalizedName } standing }
	skillLevelReward { name level }
	traderUnlock { id name normalizedName }
	offerUnlock { id trader { id name normalizedName } level item { ` + itemStub + ` } }
`

var queries = map[Kind]string{
	KindTasks: `query TrackerTasks($lang: LanguageCode, $gameMode: GameMode) {
  tasks(lang: $lang, gameMode: $gameMode) {
    id name normalizedName wikiLink minPlayerLevel experience factionName
    kappaRequired lightkeeperRequired
    trader { id name normalizedName imageLink }
    map { id name normalizedName }
    taskRequirements { task { id name } status }
  }
}`,
	KindTaskObjectives: `query TrackerTaskObjectives($lang: LanguageCode, $gameMode: GameMode) {
  tasks(lang: $lang, gameMode: $gameMode) {
    id
    objectives {` + objectiveFields + `}
    failConditions {` + objectiveFields + `}
  }
}`,
	KindTaskRewards: `query TrackerTaskRewards($lang: LanguageCode, $gameMode: GameMode) {
  tasks(lang: $lang, gameMode: $gameMode) {
    id
    startRewards {` + rewardFields + `}
    finishRewards {` + rewardFields + `}
    failureOutcome {` + rewardFields + `}
  }
}`,
	KindHideout: `query TrackerHideout($lang: LanguageCode, $gameMode: GameMode) {
  hideoutStations(lang: $lang, gameMode: $gameMode) {
    id name normalizedName imageLink
    levels {
      id level constructionTime description
      itemRequirements { id item { ` + itemStub + ` } count quantity attributes { type name value } }
      stationLevelRequirements { id station { id name } level }
      traderRequirements { id trader { id name } value }
      skillRequirements { id name level }
      crafts { id duration requiredItems { item { ` + itemStub + ` } count } rewardItems { item { ` + itemStub + ` } count } }
    }
  }
}`,
	KindItems: `query TrackerItems($lang: LanguageCode, $gameMode: GameMode) {
  items(lang: $lang, gameMode: $gameMode) {
    id name shortName normalizedName iconLink image512pxLink wikiLink backgroundColor
    basePrice width height types
    containsItems { item { id } count }
  }
}`,
	KindTraders: `query TrackerTraders($lang: LanguageCode, $gameMode: GameMode) {
  traders(lang: $lang, gameMode: $gameMode) { id name normalizedName imageLink }
}`,
	KindPlayerLevels: `query TrackerPlayerLevels {
  playerLevels { level exp levelBadgeImageLink }
}`,
	KindPrestige: `query TrackerPrestige($lang: LanguageCode, $gameMode: GameMode) {
  prestige(lang: $lang, gameMode: $gameMode) {
    id name prestigeLevel imageLink
    conditions {` + objectiveFields + `}
  }
}`,
}
